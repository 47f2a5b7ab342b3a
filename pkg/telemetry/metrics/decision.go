package metrics

import (
	"time"

	"civility-hq/kernel/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// DecisionMetrics tracks engine decisions.
//
// Metrics:
//   - civility_kernel_decisions_total: decisions by context and outcome
//   - civility_kernel_decision_duration_seconds: time spent in Decide
//   - civility_kernel_decision_candidates: plans per decision
//   - civility_kernel_decision_survivors: plans passing every constraint
type DecisionMetrics struct {
	decisionsTotal   *prometheus.CounterVec
	decisionDuration *prometheus.HistogramVec
	candidates       prometheus.Histogram
	survivors        prometheus.Histogram
}

var planCountBuckets = []float64{0, 1, 2, 3, 5, 10, 20, 50}

// NewDecisionMetrics creates and registers decision metrics with the
// provided registry.
func NewDecisionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *DecisionMetrics {
	dm := &DecisionMetrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "decisions_total",
				Help:      "Total number of decisions by context and outcome",
			},
			[]string{"context", "outcome"},
		),

		decisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "decision_duration_seconds",
				Help:      "Duration of a decision in seconds",
				Buckets:   cfg.DecisionDurationBuckets,
			},
			[]string{"outcome"},
		),

		candidates: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "decision_candidates",
				Help:      "Number of candidate plans per decision",
				Buckets:   planCountBuckets,
			},
		),

		survivors: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "decision_survivors",
				Help:      "Number of plans passing every constraint per decision",
				Buckets:   planCountBuckets,
			},
		),
	}

	registry.MustRegister(
		dm.decisionsTotal,
		dm.decisionDuration,
		dm.candidates,
		dm.survivors,
	)

	return dm
}

// RecordDecision records one decision.
func (dm *DecisionMetrics) RecordDecision(context, outcome string, duration time.Duration, candidates, survivors int) {
	dm.decisionsTotal.WithLabelValues(context, outcome).Inc()
	dm.decisionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	dm.candidates.Observe(float64(candidates))
	dm.survivors.Observe(float64(survivors))
}
