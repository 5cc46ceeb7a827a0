// Package metrics exposes Prometheus counters for the review service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector registers and records the engine's metrics on its own registry,
// so tests can run collectors side by side without global state.
type Collector struct {
	registry *prometheus.Registry

	evaluations        *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	auditWriteFailures prometheus.Counter
	extractionErrors   prometheus.Counter
}

// NewCollector creates a collector. Pass nil to use a fresh registry.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spendguard",
			Name:      "evaluations_total",
			Help:      "Compliance evaluations by verdict status.",
		}, []string{"status"}),
		evaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spendguard",
			Name:      "evaluation_duration_seconds",
			Help:      "Wall time of one evaluate-and-record cycle.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		auditWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spendguard",
			Name:      "audit_write_failures_total",
			Help:      "Evaluations whose audit append failed.",
		}),
		extractionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spendguard",
			Name:      "extraction_errors_total",
			Help:      "Failed calls to the extraction agent.",
		}),
	}

	registry.MustRegister(c.evaluations, c.evaluationDuration, c.auditWriteFailures, c.extractionErrors)
	return c
}

// RecordEvaluation records a completed evaluation and its duration.
func (c *Collector) RecordEvaluation(status string, duration time.Duration) {
	c.evaluations.WithLabelValues(status).Inc()
	c.evaluationDuration.Observe(duration.Seconds())
}

// RecordAuditFailure counts an audit append that returned an error.
func (c *Collector) RecordAuditFailure() {
	c.auditWriteFailures.Inc()
}

// RecordExtractionError counts a failed extraction call.
func (c *Collector) RecordExtractionError() {
	c.extractionErrors.Inc()
}

// Handler returns the Prometheus scrape endpoint for this registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
