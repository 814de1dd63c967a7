// Package httpmetrics exposes Prometheus instrumentation for the
// dispatcher, route selector, and cache-policy resolver, generalizing
// chproxy's metrics.go + internal/topology/metrics.go pattern: *Vec
// collectors held in a Metrics struct, built once by New, registered by the
// embedder rather than
// at package init (so a process can run more than one httpcore client
// without colliding metric registrations).
package httpmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector httpcore emits.
type Metrics struct {
	DispatcherRunning *prometheus.GaugeVec
	DispatcherQueued  *prometheus.GaugeVec

	RoutePostponedTotal *prometheus.CounterVec
	RouteExhaustedTotal *prometheus.CounterVec

	CacheDecisionsTotal *prometheus.CounterVec
}

// New builds (but does not register) a Metrics bundle under namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		DispatcherRunning: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dispatcher_running",
				Help:      "Number of calls currently running, by host.",
			},
			[]string{"host"},
		),
		DispatcherQueued: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dispatcher_queued",
				Help:      "Number of calls waiting for admission, by host.",
			},
			[]string{"host"},
		),
		RoutePostponedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "route_postponed_total",
				Help:      "Total number of routes deferred to the postponed buffer.",
			},
			[]string{"proxy_type"},
		),
		RouteExhaustedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "route_exhausted_total",
				Help:      "Total number of route selections that ran out of candidates.",
			},
			[]string{"host"},
		),
		CacheDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_decisions_total",
				Help:      "Total number of cache-policy decisions, by outcome.",
			},
			[]string{"decision"},
		),
	}
}

// MustRegister registers every collector in m against reg.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.DispatcherRunning,
		m.DispatcherQueued,
		m.RoutePostponedTotal,
		m.RouteExhaustedTotal,
		m.CacheDecisionsTotal,
	)
}
