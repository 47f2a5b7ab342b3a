package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"civility-hq/kernel/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:                 true,
		Namespace:               "test",
		Subsystem:               "kernel",
		DecisionDurationBuckets: []float64{0.0001, 0.001, 0.01},
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)

	if collector.config != cfg {
		t.Error("Collector config not set correctly")
	}
	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
}

func TestCollector_Defaults(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	NewCollector(cfg, nil)

	if cfg.Namespace != "civility" || cfg.Subsystem != "kernel" {
		t.Errorf("Namespace/Subsystem = %q/%q", cfg.Namespace, cfg.Subsystem)
	}
	if len(cfg.DecisionDurationBuckets) == 0 {
		t.Error("DecisionDurationBuckets not defaulted")
	}
}

func TestCollector_RecordDecision(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordDecision("work", "EXECUTE", 50*time.Microsecond, 3, 2)
	c.RecordDecision("work", "EXECUTE", 80*time.Microsecond, 2, 2)
	c.RecordDecision("home", "NO_VALID_PLAN", 20*time.Microsecond, 1, 0)

	dm := c.decisionMetrics
	if got := testutil.ToFloat64(dm.decisionsTotal.WithLabelValues("work", "EXECUTE")); got != 2 {
		t.Errorf("decisions_total{work,EXECUTE} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(dm.decisionsTotal.WithLabelValues("home", "NO_VALID_PLAN")); got != 1 {
		t.Errorf("decisions_total{home,NO_VALID_PLAN} = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(dm.decisionDuration); got != 2 {
		t.Errorf("decision_duration series = %d, want 2", got)
	}

	expected := `
# HELP test_kernel_decision_survivors Number of plans passing every constraint per decision
# TYPE test_kernel_decision_survivors histogram
test_kernel_decision_survivors_bucket{le="0"} 1
test_kernel_decision_survivors_bucket{le="1"} 1
test_kernel_decision_survivors_bucket{le="2"} 3
test_kernel_decision_survivors_bucket{le="3"} 3
test_kernel_decision_survivors_bucket{le="5"} 3
test_kernel_decision_survivors_bucket{le="10"} 3
test_kernel_decision_survivors_bucket{le="20"} 3
test_kernel_decision_survivors_bucket{le="50"} 3
test_kernel_decision_survivors_bucket{le="+Inf"} 3
test_kernel_decision_survivors_sum 4
test_kernel_decision_survivors_count 3
`
	if err := testutil.CollectAndCompare(dm.survivors, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

func TestCollector_ContextCardinality(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	c.contextLimiter = NewCardinalityLimiter(2)

	c.RecordDecision("a", "EXECUTE", time.Microsecond, 1, 1)
	c.RecordDecision("b", "EXECUTE", time.Microsecond, 1, 1)
	c.RecordDecision("c", "EXECUTE", time.Microsecond, 1, 1)
	c.RecordDecision("a", "EXECUTE", time.Microsecond, 1, 1)

	dm := c.decisionMetrics
	if got := testutil.ToFloat64(dm.decisionsTotal.WithLabelValues(OtherLabel, "EXECUTE")); got != 1 {
		t.Errorf("decisions_total{other} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(dm.decisionsTotal.WithLabelValues("a", "EXECUTE")); got != 2 {
		t.Errorf("decisions_total{a} = %v, want 2", got)
	}
}

func TestCollector_PolicyMetrics(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordLintIssue("UNKNOWN_CONSTRAINT", "error")
	c.RecordLintIssue("UNKNOWN_CONSTRAINT", "error")
	c.RecordLintIssue("NEGATIVE_WEIGHT", "warn")
	c.RecordPolicyReload("accepted")
	c.RecordPolicyReload("rejected")
	c.RecordPolicyReload("accepted")
	c.SetPolicyLoaded(time.Unix(1700000000, 0))

	pm := c.policyMetrics
	if got := testutil.ToFloat64(pm.lintIssuesTotal.WithLabelValues("UNKNOWN_CONSTRAINT", "error")); got != 2 {
		t.Errorf("lint_issues_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(pm.reloadsTotal.WithLabelValues("accepted")); got != 2 {
		t.Errorf("policy_reloads_total{accepted} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(pm.loadedTimestamp); got != 1700000000 {
		t.Errorf("policy_loaded_timestamp_seconds = %v", got)
	}
}

func TestCollector_EvidenceMetrics(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordEvidenceWrite(time.Millisecond, nil)
	c.RecordEvidenceWrite(time.Millisecond, nil)
	c.RecordEvidenceWrite(time.Millisecond, errors.New("disk full"))
	c.RecordPruned(5, nil)
	c.RecordPruned(2, errors.New("locked"))
	c.RecordPruned(0, nil)
	c.SetEvidenceRecords(42)

	em := c.evidenceMetrics
	if got := testutil.ToFloat64(em.writesTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("evidence_writes_total{success} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(em.writesTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("evidence_writes_total{error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(em.prunedTotal); got != 7 {
		t.Errorf("evidence_pruned_total = %v, want 7", got)
	}
	if got := testutil.ToFloat64(em.pruneErrors); got != 1 {
		t.Errorf("evidence_prune_errors_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(em.records); got != 42 {
		t.Errorf("evidence_records = %v, want 42", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	c := NewCollector(cfg, prometheus.NewRegistry())

	c.RecordDecision("work", "EXECUTE", time.Millisecond, 1, 1)
	c.RecordLintIssue("X", "error")
	c.RecordEvidenceWrite(time.Millisecond, nil)

	if got := testutil.CollectAndCount(c.decisionMetrics.decisionsTotal); got != 0 {
		t.Errorf("decisions_total series = %d, want 0", got)
	}
	if got := testutil.CollectAndCount(c.policyMetrics.lintIssuesTotal); got != 0 {
		t.Errorf("lint_issues_total series = %d, want 0", got)
	}
	if got := testutil.CollectAndCount(c.evidenceMetrics.writesTotal); got != 0 {
		t.Errorf("evidence_writes_total series = %d, want 0", got)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(3)
	for i := 0; i < 3; i++ {
		if !cl.Allow(fmt.Sprintf("v%d", i)) {
			t.Fatalf("Allow(v%d) = false", i)
		}
	}
	if cl.Allow("v3") {
		t.Error("Allow(v3) = true past the limit")
	}
	if !cl.Allow("v1") {
		t.Error("Allow(v1) = false for existing value")
	}
	if cl.Count() != 3 {
		t.Errorf("Count() = %d, want 3", cl.Count())
	}
}

func TestHandler(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	c.RecordDecision("work", "ASK_USER", time.Millisecond, 2, 1)
	if err := c.RegisterRuntimeCollectors(); err != nil {
		t.Fatalf("RegisterRuntimeCollectors() error = %v", err)
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`test_kernel_decisions_total{context="work",outcome="ASK_USER"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}
