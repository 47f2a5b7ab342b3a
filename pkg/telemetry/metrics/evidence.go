package metrics

import (
	"time"

	"civility-hq/kernel/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// EvidenceMetrics tracks the decision trace store.
//
// Metrics:
//   - civility_kernel_evidence_writes_total: store writes by status
//   - civility_kernel_evidence_write_duration_seconds: store write latency
//   - civility_kernel_evidence_pruned_total: records deleted by retention
//   - civility_kernel_evidence_prune_errors_total: failed retention runs
//   - civility_kernel_evidence_records: stored records
type EvidenceMetrics struct {
	writesTotal   *prometheus.CounterVec
	writeDuration prometheus.Histogram
	prunedTotal   prometheus.Counter
	pruneErrors   prometheus.Counter
	records       prometheus.Gauge
}

// NewEvidenceMetrics creates and registers evidence metrics with the
// provided registry.
func NewEvidenceMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EvidenceMetrics {
	em := &EvidenceMetrics{
		writesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evidence_writes_total",
				Help:      "Total number of evidence writes by status",
			},
			[]string{"status"},
		),

		writeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evidence_write_duration_seconds",
				Help:      "Duration of evidence writes in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8), // 100µs to 1.6s
			},
		),

		prunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evidence_pruned_total",
				Help:      "Total number of evidence records deleted by retention",
			},
		),

		pruneErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evidence_prune_errors_total",
				Help:      "Total number of failed retention runs",
			},
		),

		records: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evidence_records",
				Help:      "Number of stored evidence records",
			},
		),
	}

	registry.MustRegister(
		em.writesTotal,
		em.writeDuration,
		em.prunedTotal,
		em.pruneErrors,
		em.records,
	)

	return em
}

// RecordWrite records one write.
func (em *EvidenceMetrics) RecordWrite(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	em.writesTotal.WithLabelValues(status).Inc()
	em.writeDuration.Observe(duration.Seconds())
}

// RecordPrune records one retention run. Records deleted before a failure
// still count.
func (em *EvidenceMetrics) RecordPrune(deleted int64, err error) {
	if deleted > 0 {
		em.prunedTotal.Add(float64(deleted))
	}
	if err != nil {
		em.pruneErrors.Inc()
	}
}

// SetRecords sets the stored record gauge.
func (em *EvidenceMetrics) SetRecords(n int64) {
	em.records.Set(float64(n))
}
