// Package metrics exposes the Prometheus counters of the triage pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "xpose"

// Metrics holds the pipeline metrics. A nil *Metrics records nothing.
type Metrics struct {
	SubmissionsTotal      *prometheus.CounterVec
	SubmissionDuration    prometheus.Histogram
	CollaboratorFailures  *prometheus.CounterVec
	LedgerAnchorFailures  prometheus.Counter
	LedgerAnchorSuccesses prometheus.Counter
	OverridesApplied      *prometheus.CounterVec
	AssignmentsTotal      *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers all metrics with reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		SubmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Report submissions by response status",
		}, []string{"status"}),
		SubmissionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_seconds",
			Help:      "Time to triage one submission",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		CollaboratorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_failures_total",
			Help:      "Failed calls to external collaborators",
		}, []string{"service"}),
		LedgerAnchorFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_anchor_failures_total",
			Help:      "Reports whose ledger anchoring failed",
		}),
		LedgerAnchorSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_anchor_successes_total",
			Help:      "Reports anchored to the ledger",
		}),
		OverridesApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overrides_applied_total",
			Help:      "False-positive overrides by rule",
		}, []string{"rule"}),
		AssignmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Auto-assignment attempts by result",
		}, []string{"result"}),
	}

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Handler returns the HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveSubmission records a finished submission
func (m *Metrics) ObserveSubmission(status string, started time.Time) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(status).Inc()
	m.SubmissionDuration.Observe(time.Since(started).Seconds())
}

// CollaboratorFailed counts a failed call to service
func (m *Metrics) CollaboratorFailed(service string) {
	if m == nil {
		return
	}
	m.CollaboratorFailures.WithLabelValues(service).Inc()
}

// AnchorFailed counts a failed ledger anchor
func (m *Metrics) AnchorFailed() {
	if m == nil {
		return
	}
	m.LedgerAnchorFailures.Inc()
}

// AnchorSucceeded counts a successful ledger anchor
func (m *Metrics) AnchorSucceeded() {
	if m == nil {
		return
	}
	m.LedgerAnchorSuccesses.Inc()
}

// OverrideApplied counts an applied override rule
func (m *Metrics) OverrideApplied(rule string) {
	if m == nil {
		return
	}
	m.OverridesApplied.WithLabelValues(rule).Inc()
}

// AssignmentResult counts an auto-assignment outcome
func (m *Metrics) AssignmentResult(result string) {
	if m == nil {
		return
	}
	m.AssignmentsTotal.WithLabelValues(result).Inc()
}
