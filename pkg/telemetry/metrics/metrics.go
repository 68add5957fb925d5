// Package metrics exposes the gateway's Prometheus metrics: dispatch
// counts per provider, time to first downstream event, and OAuth refresh
// outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the metric instances and their registry.
type Collector struct {
	registry *prometheus.Registry

	// Dispatch counter by provider and outcome.
	dispatches *prometheus.CounterVec

	// Time from request receipt to the first downstream event.
	firstEvent *prometheus.HistogramVec

	// OAuth refresh counter by provider and outcome.
	refreshes *prometheus.CounterVec
}

// NewCollector creates and registers the gateway metrics. A nil registry
// gets a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,

		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "claude_proxy",
				Name:      "dispatches_total",
				Help:      "Total requests dispatched, by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),

		firstEvent: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "claude_proxy",
				Name:      "first_event_seconds",
				Help:      "Time from request receipt to first downstream event",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"provider"},
		),

		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "claude_proxy",
				Name:      "oauth_refreshes_total",
				Help:      "Total OAuth token refreshes, by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
	}

	registry.MustRegister(c.dispatches, c.firstEvent, c.refreshes)
	return c
}

// RecordDispatch records a completed dispatch. Outcome is "ok" or "error".
func (c *Collector) RecordDispatch(provider string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.dispatches.WithLabelValues(provider, outcome).Inc()
}

// RecordFirstEvent records the latency to the first downstream event.
func (c *Collector) RecordFirstEvent(provider string, elapsed time.Duration) {
	c.firstEvent.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// RecordRefresh records an OAuth refresh attempt.
func (c *Collector) RecordRefresh(provider string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.refreshes.WithLabelValues(provider, outcome).Inc()
}

// Handler returns the /metrics HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
