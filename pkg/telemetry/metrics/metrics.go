// Package metrics defines the gateway's prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's collectors.
//
// Metrics:
//   - <ns>_har_reloads_total: evidence file change events by challenge kind
//   - <ns>_har_fresh: evidence file freshness (1 fresh, 0 stale) by kind
//   - <ns>_preauth_entries: live credentials currently pooled
//   - <ns>_preauth_pushes_total: credentials accepted into the pool
//   - <ns>_preauth_pops_total: credential draws from the pool
//   - <ns>_ratelimit_requests_total: rate limiter decisions by outcome
type Metrics struct {
	HarReloads *prometheus.CounterVec
	HarFresh   *prometheus.GaugeVec

	PreauthEntries prometheus.Gauge
	PreauthPushes  prometheus.Counter
	PreauthPops    prometheus.Counter

	RateLimitRequests *prometheus.CounterVec
}

// New creates and registers the gateway collectors with registry.
func New(namespace string, registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HarReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "har_reloads_total",
				Help:      "Total number of evidence file change events",
			},
			[]string{"kind"},
		),
		HarFresh: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "har_fresh",
				Help:      "Evidence file freshness (1 fresh, 0 stale)",
			},
			[]string{"kind"},
		),
		PreauthEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "preauth_entries",
				Help:      "Live preauth credentials currently pooled",
			},
		),
		PreauthPushes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "preauth_pushes_total",
				Help:      "Total preauth credentials accepted into the pool",
			},
		),
		PreauthPops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "preauth_pops_total",
				Help:      "Total preauth credential draws from the pool",
			},
		),
		RateLimitRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_requests_total",
				Help:      "Total rate limiter decisions",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		m.HarReloads,
		m.HarFresh,
		m.PreauthEntries,
		m.PreauthPushes,
		m.PreauthPops,
		m.RateLimitRequests,
	)

	return m
}

// Handler returns the prometheus exposition handler for registry.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
