package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/arran4/httpcore/httplog"
)

// WorkerPool is the collaborator spec §4.1/§6 describes: Execute submits a
// unit of work and must accept it without queueing against the dispatcher's
// own lock — Dispatcher calls Execute from inside its critical section and
// requires the call to return immediately. Implementations that need to
// throttle actual execution (see Pool.limiter below) must do so after the
// handoff, never inside Execute itself.
type WorkerPool interface {
	Execute(task func())
}

// Pool is the default WorkerPool: zero core workers, an effectively
// unbounded number of them spun up on demand, synchronous hand-off (no task
// queue builds up waiting for a worker), and a 60-second idle keep-alive
// before a worker goroutine exits. It generalizes chproxy's reliance on
// bounded goroutine fan-out (see internal/topology.Node.Penalize's use of
// time.AfterFunc for a comparable "do work later, clean up after a
// duration" shape) to a reusable worker abstraction.
type Pool struct {
	name      string
	keepAlive time.Duration
	limiter   *rate.Limiter

	mu          sync.Mutex
	idleWorkers []*poolWorker
	nextID      uint64

	spawned spawnCount
}

// spawnCount is an atomic uint32, sized for Pool.spawned: the number of
// live worker goroutines never needs more range than that, and it is read
// (via Spawned callers) and written (one spawn or retirement at a time)
// from different goroutines without p.mu held, so a bare atomic serves.
type spawnCount struct {
	n atomic.Uint32
}

func (c *spawnCount) Load() uint32 { return c.n.Load() }
func (c *spawnCount) Inc()         { c.n.Add(1) }
func (c *spawnCount) Dec()         { c.n.Add(^uint32(0)) }

// Spawned reports how many worker goroutines are currently alive (idle or
// running a task). Exposed for httpmetrics and tests; not used by Execute
// itself.
func (p *Pool) Spawned() uint32 {
	return p.spawned.Load()
}

type poolWorker struct {
	tasks chan func()
}

// NewPool returns a Pool whose worker goroutines are logged under name.
func NewPool(name string) *Pool {
	return &Pool{name: name, keepAlive: 60 * time.Second}
}

// NewThrottledPool returns a Pool whose workers wait on limiter before
// running each task — the dispatcher's overflow valve under sustained
// promotion storms (SPEC_FULL domain stack).
func NewThrottledPool(name string, limiter *rate.Limiter) *Pool {
	p := NewPool(name)
	p.limiter = limiter
	return p
}

func (p *Pool) Execute(task func()) {
	p.mu.Lock()
	var w *poolWorker
	if n := len(p.idleWorkers); n > 0 {
		w = p.idleWorkers[n-1]
		p.idleWorkers = p.idleWorkers[:n-1]
	}
	p.mu.Unlock()

	if w == nil {
		w = p.spawn()
	}
	w.tasks <- task
}

func (p *Pool) spawn() *poolWorker {
	w := &poolWorker{tasks: make(chan func(), 1)}
	id := atomic.AddUint64(&p.nextID, 1)
	p.spawned.Inc()
	go p.run(w, fmt.Sprintf("%s-%d", p.name, id))
	return w
}

func (p *Pool) run(w *poolWorker, name string) {
	idle := time.NewTimer(p.keepAlive)
	defer idle.Stop()
	for {
		select {
		case task := <-w.tasks:
			p.runTask(name, task)
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(p.keepAlive)

			p.mu.Lock()
			p.idleWorkers = append(p.idleWorkers, w)
			p.mu.Unlock()

		case <-idle.C:
			p.mu.Lock()
			p.removeIdle(w)
			p.mu.Unlock()
			p.spawned.Dec()
			return
		}
	}
}

func (p *Pool) runTask(name string, task func()) {
	if p.limiter != nil {
		if err := p.limiter.Wait(context.Background()); err != nil {
			httplog.Errorf("httpcore: worker %s: rate limiter wait failed: %s", name, err)
		}
	}
	defer func() {
		if r := recover(); r != nil {
			httplog.Errorf("httpcore: worker %s: task panicked: %v", name, r)
		}
	}()
	task()
}

func (p *Pool) removeIdle(w *poolWorker) {
	for i, c := range p.idleWorkers {
		if c == w {
			p.idleWorkers = append(p.idleWorkers[:i], p.idleWorkers[i+1:]...)
			return
		}
	}
}

// InlinePool runs every task synchronously on the calling goroutine. Tests
// use it (per spec §5's "separable interface so test suites can substitute
// a deterministic inline executor") to make promotion ordering observable
// without real concurrency.
type InlinePool struct{}

func (InlinePool) Execute(task func()) { task() }
