package metrics

import (
	"time"

	"civility-hq/kernel/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// PolicyMetrics tracks policy documents.
//
// Metrics:
//   - civility_kernel_lint_issues_total: lint findings by code and severity
//   - civility_kernel_policy_reloads_total: watcher reloads by result
//   - civility_kernel_policy_loaded_timestamp_seconds: when the current policy was accepted
type PolicyMetrics struct {
	lintIssuesTotal *prometheus.CounterVec
	reloadsTotal    *prometheus.CounterVec
	loadedTimestamp prometheus.Gauge
}

// NewPolicyMetrics creates and registers policy metrics with the provided registry.
func NewPolicyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PolicyMetrics {
	pm := &PolicyMetrics{
		lintIssuesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "lint_issues_total",
				Help:      "Total number of policy lint issues by code and severity",
			},
			[]string{"code", "severity"},
		),

		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_reloads_total",
				Help:      "Total number of policy reload attempts by result",
			},
			[]string{"result"},
		),

		loadedTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_loaded_timestamp_seconds",
				Help:      "Unix time the current policy was accepted",
			},
		),
	}

	registry.MustRegister(
		pm.lintIssuesTotal,
		pm.reloadsTotal,
		pm.loadedTimestamp,
	)

	return pm
}

// RecordLintIssue counts one lint finding.
func (pm *PolicyMetrics) RecordLintIssue(code, severity string) {
	pm.lintIssuesTotal.WithLabelValues(code, severity).Inc()
}

// RecordReload counts one reload attempt.
func (pm *PolicyMetrics) RecordReload(result string) {
	pm.reloadsTotal.WithLabelValues(result).Inc()
}

// SetLoaded sets the policy load timestamp.
func (pm *PolicyMetrics) SetLoaded(t time.Time) {
	pm.loadedTimestamp.Set(float64(t.UnixNano()) / 1e9)
}
