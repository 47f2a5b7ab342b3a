package metrics

import (
	"sync"
	"time"

	"civility-hq/kernel/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// OtherLabel replaces label values once the cardinality limit is reached.
const OtherLabel = "other"

// DefaultMaxCardinality bounds the number of distinct decision contexts
// tracked per metric.
const DefaultMaxCardinality = 1000

// Collector is the entry point for all Prometheus metrics of the kernel.
// Every Record method is a no-op when metrics are disabled.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	decisionMetrics *DecisionMetrics
	policyMetrics   *PolicyMetrics
	evidenceMetrics *EvidenceMetrics

	// contexts are user-defined strings, so they are capped
	contextLimiter *CardinalityLimiter
}

// NewCollector creates a collector registering into registry. If registry
// is nil a fresh one is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "civility",
//		Subsystem: "kernel",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.DecisionDurationBuckets) == 0 {
		cfg.DecisionDurationBuckets = append([]float64(nil), config.DefaultDecisionDurationBuckets...)
	}

	return &Collector{
		config:          cfg,
		registry:        registry,
		decisionMetrics: NewDecisionMetrics(cfg, registry),
		policyMetrics:   NewPolicyMetrics(cfg, registry),
		evidenceMetrics: NewEvidenceMetrics(cfg, registry),
		contextLimiter:  NewCardinalityLimiter(DefaultMaxCardinality),
	}
}

// RecordDecision records one engine decision.
//
// Example:
//
//	collector.RecordDecision("work", "EXECUTE", 40*time.Microsecond, 3, 2)
func (c *Collector) RecordDecision(context, outcome string, duration time.Duration, candidates, survivors int) {
	if !c.config.Enabled {
		return
	}
	if !c.contextLimiter.Allow(context) {
		context = OtherLabel
	}
	c.decisionMetrics.RecordDecision(context, outcome, duration, candidates, survivors)
}

// RecordLintIssue counts one lint finding.
func (c *Collector) RecordLintIssue(code, severity string) {
	if !c.config.Enabled {
		return
	}
	c.policyMetrics.RecordLintIssue(code, severity)
}

// RecordPolicyReload records a policy reload attempt. Result is one of
// "accepted", "rejected", or "error".
func (c *Collector) RecordPolicyReload(result string) {
	if !c.config.Enabled {
		return
	}
	c.policyMetrics.RecordReload(result)
}

// SetPolicyLoaded marks the time the current policy became active.
func (c *Collector) SetPolicyLoaded(t time.Time) {
	if !c.config.Enabled {
		return
	}
	c.policyMetrics.SetLoaded(t)
}

// RecordEvidenceWrite records one evidence store write.
func (c *Collector) RecordEvidenceWrite(duration time.Duration, err error) {
	if !c.config.Enabled {
		return
	}
	c.evidenceMetrics.RecordWrite(duration, err)
}

// RecordPruned records one retention run.
func (c *Collector) RecordPruned(deleted int64, err error) {
	if !c.config.Enabled {
		return
	}
	c.evidenceMetrics.RecordPrune(deleted, err)
}

// SetEvidenceRecords reports the number of stored evidence records.
func (c *Collector) SetEvidenceRecords(n int64) {
	if !c.config.Enabled {
		return
	}
	c.evidenceMetrics.SetRecords(n)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether a label value may be used. Values already seen are
// always allowed; new values are allowed until the limit is reached.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
