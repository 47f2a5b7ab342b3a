package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"civility-hq/kernel/pkg/evidence"
	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/engine"
	"civility-hq/kernel/pkg/policy/lint"
)

// Attribute keys use the "civility.*" namespace.
const (
	AttrCommand = "civility.command"

	AttrDecisionID   = "civility.decision.id"
	AttrContext      = "civility.decision.context"
	AttrOutcome      = "civility.decision.outcome"
	AttrChosenPlan   = "civility.decision.chosen_plan"
	AttrCandidates   = "civility.decision.candidates"
	AttrSurvivors    = "civility.decision.survivors"
	AttrUncertainty  = "civility.decision.uncertainty_threshold"
	AttrPolicyVer    = "civility.policy.version"
	AttrPolicyHash   = "civility.policy.hash"
	AttrLintOK       = "civility.lint.ok"
	AttrLintIssues   = "civility.lint.issues"
	AttrLintErrors   = "civility.lint.errors"
	AttrRecordID     = "civility.evidence.record_id"
	AttrTraceHash    = "civility.evidence.trace_hash"
	AttrErrorMessage = "error.message"
)

// SetDecisionAttributes describes a decision on span.
func SetDecisionAttributes(span trace.Span, t engine.DecisionTrace) {
	span.SetAttributes(
		attribute.String(AttrDecisionID, t.DecisionID),
		attribute.String(AttrContext, t.Context),
		attribute.String(AttrOutcome, string(t.Outcome)),
		attribute.Int(AttrCandidates, len(t.Candidates)),
		attribute.Int(AttrSurvivors, len(t.Survivors())),
		attribute.Float64(AttrUncertainty, t.EffectivePolicy.UncertaintyThreshold),
	)
	if t.ChosenPlanID != "" {
		span.SetAttributes(attribute.String(AttrChosenPlan, t.ChosenPlanID))
	}
}

// SetPolicyAttributes describes the policy a command operated on.
func SetPolicyAttributes(span trace.Span, p *policy.Policy, hash string) {
	if p == nil {
		return
	}
	span.SetAttributes(attribute.String(AttrPolicyVer, p.Version))
	if hash != "" {
		span.SetAttributes(attribute.String(AttrPolicyHash, hash))
	}
}

// SetLintAttributes summarizes a lint report and adds one event per issue.
func SetLintAttributes(span trace.Span, r lint.Report) {
	span.SetAttributes(
		attribute.Bool(AttrLintOK, r.OK),
		attribute.Int(AttrLintIssues, len(r.Issues)),
		attribute.Int(AttrLintErrors, len(r.Errors())),
	)
	for _, is := range r.Issues {
		span.AddEvent("lint.issue", trace.WithAttributes(
			attribute.String("code", is.Code),
			attribute.String("severity", string(is.Severity)),
			attribute.String("path", is.Path),
		))
	}
}

// SetEvidenceAttributes links span to a stored record.
func SetEvidenceAttributes(span trace.Span, r *evidence.Record) {
	if r == nil {
		return
	}
	span.SetAttributes(
		attribute.String(AttrRecordID, r.ID),
		attribute.String(AttrTraceHash, r.TraceHash),
	)
}
