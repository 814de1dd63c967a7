// Package dispatch implements the call dispatcher: the admission-control
// FSM that enforces global and per-host parallelism limits over
// asynchronous calls, tracks in-flight synchronous calls for bookkeeping,
// and fires an idle callback when both queues empty.
package dispatch

import (
	"errors"
	"sync"

	"github.com/arran4/httpcore/httplog"
	"github.com/arran4/httpcore/httpmetrics"
)

// Defaults mirror the client's historical ceilings: generous enough that
// ordinary traffic never queues, tight enough that a single runaway host
// can't starve the pool.
const (
	DefaultMaxRequests        = 64
	DefaultMaxRequestsPerHost = 5
)

// ErrInvalidLimit is returned by SetMaxRequests / SetMaxRequestsPerHost
// when asked to set a limit below 1.
var ErrInvalidLimit = errors.New("dispatch: limit must be >= 1")

// Dispatcher is the process-wide (per-client) admission coordinator from
// spec §3/§4.1. It owns three queues — ready async, running async, running
// sync — a single mutex guarding all of it, and an optional idle callback.
// Construct one per httpclient.Client; never stash it in package-level
// state (spec §9 Design Notes).
type Dispatcher struct {
	pool    WorkerPool
	metrics *httpmetrics.Metrics

	mu                 sync.Mutex
	maxRequests        int
	maxRequestsPerHost int
	readyAsync         []*asyncCall
	runningAsync       []*asyncCall
	runningSync        []*syncCall
	idleCallback       func()
}

// New returns a Dispatcher backed by pool. If pool is nil, a default Pool
// named "httpcore-dispatch" is constructed lazily on first use.
func New(pool WorkerPool) *Dispatcher {
	return &Dispatcher{
		pool:               pool,
		maxRequests:        DefaultMaxRequests,
		maxRequestsPerHost: DefaultMaxRequestsPerHost,
	}
}

func (d *Dispatcher) workerPool() WorkerPool {
	if d.pool == nil {
		d.pool = NewPool("httpcore-dispatch")
	}
	return d.pool
}

// SetIdleCallback installs the single observer invoked after the running
// set transitions to empty. It is not a subscription list (spec §9): a
// second call replaces the first.
func (d *Dispatcher) SetIdleCallback(cb func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.idleCallback = cb
}

// SetMetrics installs m as the destination for the dispatcher's per-host
// running/queued gauges. Until it is called (or when m is nil) the
// Dispatcher has no metrics and every gauge update is a no-op; call this
// once, before the dispatcher starts admitting calls.
func (d *Dispatcher) SetMetrics(m *httpmetrics.Metrics) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.metrics = m
}

// SetMaxRequests changes the global running ceiling. n must be >= 1.
// Calls already running beyond a lowered limit are left alone; the new
// ceiling governs only future admissions.
func (d *Dispatcher) SetMaxRequests(n int) error {
	if n < 1 {
		return ErrInvalidLimit
	}
	d.mu.Lock()
	d.maxRequests = n
	d.promoteCalls()
	d.mu.Unlock()
	return nil
}

// SetMaxRequestsPerHost changes the per-host running ceiling. n must be >= 1.
func (d *Dispatcher) SetMaxRequestsPerHost(n int) error {
	if n < 1 {
		return ErrInvalidLimit
	}
	d.mu.Lock()
	d.maxRequestsPerHost = n
	d.promoteCalls()
	d.mu.Unlock()
	return nil
}

func (d *Dispatcher) MaxRequests() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxRequests
}

func (d *Dispatcher) MaxRequestsPerHost() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxRequestsPerHost
}

// Enqueue admits an async call. If the dispatcher has spare global and
// per-host capacity it is moved straight into the running set and handed
// to the worker pool; otherwise it waits in the ready queue. Admission
// always succeeds logically — there is no "rejected" outcome, only
// "running now" or "running later".
func (d *Dispatcher) Enqueue(call Call, run func()) {
	ac := &asyncCall{call: call, run: run}

	d.mu.Lock()
	if len(d.runningAsync) < d.maxRequests && d.runningForHostLocked(ac.host()) < d.maxRequestsPerHost {
		d.runningAsync = append(d.runningAsync, ac)
		d.submitLocked(ac)
		d.updateHostMetricsLocked(ac.host())
		d.mu.Unlock()
		return
	}
	d.readyAsync = append(d.readyAsync, ac)
	d.updateHostMetricsLocked(ac.host())
	d.mu.Unlock()
}

// Executed registers a synchronous call for bookkeeping only. No admission
// limit applies — the caller's own thread/goroutine throttles itself by
// blocking on the call.
func (d *Dispatcher) Executed(call Call) {
	d.mu.Lock()
	d.runningSync = append(d.runningSync, &syncCall{call: call})
	d.updateHostMetricsLocked(hostKey(call.Host()))
	d.mu.Unlock()
}

// Finished removes call from whichever queue it is tracked in. The call
// MUST be present — its absence is a programming error (spec §7
// AssertionViolation) and this aborts the process rather than silently
// continuing with inconsistent bookkeeping.
func (d *Dispatcher) Finished(call Call, async bool) {
	d.mu.Lock()

	if async {
		idx := -1
		for i, ac := range d.runningAsync {
			if ac.call == call {
				idx = i
				break
			}
		}
		if idx < 0 {
			d.mu.Unlock()
			panic("BUG: dispatch: Finished(async) called for a call not in the running queue")
		}
		host := d.runningAsync[idx].host()
		d.runningAsync = append(d.runningAsync[:idx], d.runningAsync[idx+1:]...)
		d.promoteCalls()
		d.updateHostMetricsLocked(host)
	} else {
		idx := -1
		for i, sc := range d.runningSync {
			if sc.call == call {
				idx = i
				break
			}
		}
		if idx < 0 {
			d.mu.Unlock()
			panic("BUG: dispatch: Finished(sync) called for a call not in the running queue")
		}
		host := hostKey(d.runningSync[idx].call.Host())
		d.runningSync = append(d.runningSync[:idx], d.runningSync[idx+1:]...)
		d.updateHostMetricsLocked(host)
	}

	idle := d.isIdleLocked()
	cb := d.idleCallback
	d.mu.Unlock()

	d.fireIdle(idle, cb)
}

// CancelAll signals cancellation on every call currently tracked, in all
// three queues. It does not remove any entry — removal is always driven by
// the call's own termination path, which must still call Finished.
func (d *Dispatcher) CancelAll() {
	d.mu.Lock()
	calls := make([]Call, 0, len(d.readyAsync)+len(d.runningAsync)+len(d.runningSync))
	for _, ac := range d.readyAsync {
		calls = append(calls, ac.call)
	}
	for _, ac := range d.runningAsync {
		calls = append(calls, ac.call)
	}
	for _, sc := range d.runningSync {
		calls = append(calls, sc.call)
	}
	d.mu.Unlock()

	for _, c := range calls {
		c.Cancel()
	}
}

// QueuedCalls returns an immutable snapshot of the ready queue.
func (d *Dispatcher) QueuedCalls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.readyAsync))
	for i, ac := range d.readyAsync {
		out[i] = ac.call
	}
	return out
}

// RunningCalls returns an immutable snapshot of every running call, async
// and sync combined.
func (d *Dispatcher) RunningCalls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, 0, len(d.runningAsync)+len(d.runningSync))
	for _, ac := range d.runningAsync {
		out = append(out, ac.call)
	}
	for _, sc := range d.runningSync {
		out = append(out, sc.call)
	}
	return out
}

func (d *Dispatcher) QueuedCallsCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.readyAsync)
}

func (d *Dispatcher) RunningCallsCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.runningAsync) + len(d.runningSync)
}

func (d *Dispatcher) runningForHostLocked(host string) int {
	n := 0
	for _, ac := range d.runningAsync {
		if ac.host() == host {
			n++
		}
	}
	return n
}

func (d *Dispatcher) queuedForHostLocked(host string) int {
	n := 0
	for _, ac := range d.readyAsync {
		if ac.host() == host {
			n++
		}
	}
	return n
}

func (d *Dispatcher) syncRunningForHostLocked(host string) int {
	n := 0
	for _, sc := range d.runningSync {
		if hostKey(sc.call.Host()) == host {
			n++
		}
	}
	return n
}

// updateHostMetricsLocked sets the running/queued gauges for host to their
// current absolute counts. Called with d.mu held, after every mutation of
// the three queues that could have touched host.
func (d *Dispatcher) updateHostMetricsLocked(host string) {
	if d.metrics == nil {
		return
	}
	running := d.runningForHostLocked(host) + d.syncRunningForHostLocked(host)
	d.metrics.DispatcherRunning.WithLabelValues(host).Set(float64(running))
	d.metrics.DispatcherQueued.WithLabelValues(host).Set(float64(d.queuedForHostLocked(host)))
}

// promoteCalls shifts eligible calls from ready to running in FIFO order,
// once capacity has opened up (a call finished, or the limits were
// raised). Candidates skipped because their host is saturated stay in
// ready and may be leapfrogged by later calls to other hosts — global
// throughput wins over strict per-host fairness (spec §4.1).
//
// Must be called with d.mu held.
func (d *Dispatcher) promoteCalls() {
	if len(d.runningAsync) >= d.maxRequests {
		return
	}
	if len(d.readyAsync) == 0 {
		return
	}

	remaining := d.readyAsync[:0:0]
	for _, ac := range d.readyAsync {
		if len(d.runningAsync) >= d.maxRequests {
			remaining = append(remaining, ac)
			continue
		}
		if d.runningForHostLocked(ac.host()) >= d.maxRequestsPerHost {
			remaining = append(remaining, ac)
			continue
		}
		d.runningAsync = append(d.runningAsync, ac)
		d.submitLocked(ac)
		d.updateHostMetricsLocked(ac.host())
	}
	d.readyAsync = remaining
}

// submitLocked hands ac to the worker pool. Pool.Execute must be
// non-blocking (spec §5) since this runs inside d.mu.
func (d *Dispatcher) submitLocked(ac *asyncCall) {
	run := ac.run
	d.workerPool().Execute(func() {
		defer func() {
			if r := recover(); r != nil {
				httplog.Errorf("httpcore: dispatch: call to %q panicked: %v", ac.host(), r)
			}
		}()
		run()
	})
}

func (d *Dispatcher) isIdleLocked() bool {
	return len(d.runningAsync)+len(d.runningSync) == 0
}

// fireIdle invokes cb outside the lock, at most once, on the calling
// goroutine — callers must not assume any particular goroutine runs it.
func (d *Dispatcher) fireIdle(idle bool, cb func()) {
	if idle && cb != nil {
		cb()
	}
}
