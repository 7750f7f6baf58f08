// Package metrics defines the Prometheus collectors for the server and the
// sync engine. Collectors register on a caller-supplied registry so tests can
// use a fresh one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "brainbox"

// HTTP holds request metrics for the REST and RPC surface.
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Changes  prometheus.Gauge
}

// NewHTTP registers server collectors on reg.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	m := &HTTP{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Changes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "changefeed",
			Name:      "subscribers",
			Help:      "Connected change feed subscribers.",
		}),
	}
	reg.MustRegister(m.Requests, m.Duration, m.Changes)
	return m
}

// Sync holds client-side engine metrics.
type Sync struct {
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheCoalesced prometheus.Counter
	Discarded      prometheus.Counter
	Mutations      *prometheus.CounterVec
	Busy           prometheus.Counter
	Rollbacks      prometheus.Counter
}

// NewSync registers engine collectors on reg.
func NewSync(reg prometheus.Registerer) *Sync {
	m := &Sync{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mirror", Name: "hits_total",
			Help: "Snapshot reads served from the cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mirror", Name: "misses_total",
			Help: "Snapshot reads that started a remote list.",
		}),
		CacheCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mirror", Name: "coalesced_total",
			Help: "Snapshot reads that joined an in-flight list.",
		}),
		Discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mirror", Name: "discarded_total",
			Help: "List results dropped because the key was released or invalidated.",
		}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mutation", Name: "total",
			Help: "Mutations by kind, operation and outcome.",
		}, []string{"kind", "op", "outcome"}),
		Busy: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mutation", Name: "busy_total",
			Help: "Mutations and toggles rejected because one was in flight.",
		}),
		Rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "optimistic", Name: "rollbacks_total",
			Help: "Optimistic predictions undone after a failed toggle.",
		}),
	}
	reg.MustRegister(m.CacheHits, m.CacheMisses, m.CacheCoalesced, m.Discarded, m.Mutations, m.Busy, m.Rollbacks)
	return m
}

// Handler serves the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// The methods below are safe on a nil *Sync, so components can run without metrics.

func (m *Sync) Hit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Sync) Miss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

func (m *Sync) Coalesce() {
	if m != nil {
		m.CacheCoalesced.Inc()
	}
}

func (m *Sync) Discard() {
	if m != nil {
		m.Discarded.Inc()
	}
}

func (m *Sync) Mutation(kind, op, outcome string) {
	if m != nil {
		m.Mutations.WithLabelValues(kind, op, outcome).Inc()
	}
}

func (m *Sync) Reject() {
	if m != nil {
		m.Busy.Inc()
	}
}

func (m *Sync) Rollback() {
	if m != nil {
		m.Rollbacks.Inc()
	}
}
