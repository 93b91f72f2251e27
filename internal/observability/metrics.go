// Package observability provides Prometheus metrics for the fetch/cache
// layer. Metrics never carry query text, only provider and operation labels.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the counters the dispatcher and adapters update. A nil
// *Metrics is valid and records nothing, so tests can pass nil.
type Metrics struct {
	FetchAttempts   *prometheus.CounterVec
	FetchFailures   *prometheus.CounterVec
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	QuotaRejections *prometheus.CounterVec
	Fallbacks       *prometheus.CounterVec
}

// New registers the chatpilot metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatpilot_fetch_attempts_total",
			Help: "Remote fetch attempts per provider.",
		}, []string{"provider"}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatpilot_fetch_failures_total",
			Help: "Remote fetches that ended in failure per provider.",
		}, []string{"provider"}),
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatpilot_cache_hits_total",
			Help: "Cache hits per operation.",
		}, []string{"operation"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatpilot_cache_misses_total",
			Help: "Cache misses per operation.",
		}, []string{"operation"}),
		QuotaRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatpilot_quota_rejections_total",
			Help: "Requests routed away because a daily ceiling was spent.",
		}, []string{"provider"}),
		Fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatpilot_fallbacks_total",
			Help: "Responses served by a same-shape fallback path.",
		}, []string{"operation"}),
	}
}

// ObserveCacheHit records a cache hit for op.
func (m *Metrics) ObserveCacheHit(op string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(op).Inc()
}

// ObserveCacheMiss records a cache miss for op.
func (m *Metrics) ObserveCacheMiss(op string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(op).Inc()
}

// ObserveFetch records a remote fetch attempt and, when failed is true, a
// failure for the provider.
func (m *Metrics) ObserveFetch(provider string, failed bool) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(provider).Inc()
	if failed {
		m.FetchFailures.WithLabelValues(provider).Inc()
	}
}

// ObserveQuotaRejection records a quota-driven reroute for provider.
func (m *Metrics) ObserveQuotaRejection(provider string) {
	if m == nil {
		return
	}
	m.QuotaRejections.WithLabelValues(provider).Inc()
}

// ObserveFallback records a fallback-served response for op.
func (m *Metrics) ObserveFallback(op string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(op).Inc()
}
