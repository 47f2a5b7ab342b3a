// Package lint statically checks a policy for mistakes. Linting never runs
// a decision.
package lint

import (
	"fmt"
	"math"

	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/constraints"
	"civility-hq/kernel/pkg/policy/scoring"
)

// Severity grades an issue.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
	SeverityInfo  Severity = "info"
)

// Issue codes, in check order.
const (
	CodeThresholdOutOfRange       = "THRESHOLD_OUT_OF_RANGE"
	CodeNegativeWeight            = "NEGATIVE_WEIGHT"
	CodeWeightsSumZero            = "WEIGHTS_SUM_ZERO"
	CodeMissingScorer             = "MISSING_SCORER"
	CodeUnknownConstraint         = "UNKNOWN_CONSTRAINT"
	CodeInvalidConstraintParams   = "INVALID_CONSTRAINT_PARAMS"
	CodeDuplicateConstraint       = "DUPLICATE_CONSTRAINT"
	CodeContextConstraintConflict = "CONTEXT_CONSTRAINT_CONFLICT"
)

// Issue is a single lint finding.
type Issue struct {
	Severity Severity       `json:"severity"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Path     string         `json:"path,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// Report is the result of linting a policy.
type Report struct {
	// OK is false when any issue has error severity.
	OK     bool    `json:"ok"`
	Issues []Issue `json:"issues"`
}

// HasWarnings reports whether any issue has warn severity.
func (r Report) HasWarnings() bool {
	for _, is := range r.Issues {
		if is.Severity == SeverityWarn {
			return true
		}
	}
	return false
}

// Errors returns the error-severity issues.
func (r Report) Errors() []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Severity == SeverityError {
			out = append(out, is)
		}
	}
	return out
}

// Codes returns the issue codes in report order.
func (r Report) Codes() []string {
	out := make([]string, len(r.Issues))
	for i, is := range r.Issues {
		out[i] = is.Code
	}
	return out
}

// Deps are the registries a lint run consults. Scorers is optional; when
// nil the MISSING_SCORER check is skipped.
type Deps struct {
	Registry *constraints.Registry
	Scorers  *scoring.Registry
}

type linter struct {
	p      *policy.Policy
	deps   Deps
	issues []Issue
}

// Policy lints p.
func Policy(p *policy.Policy, deps Deps) Report {
	if p == nil {
		p = &policy.Policy{}
	}
	l := &linter{p: p, deps: deps}

	l.checkThresholds()
	l.checkNegativeWeights()
	l.checkWeightSum()
	if deps.Scorers != nil {
		l.checkScorers()
	}
	l.checkUnknownConstraints()
	l.checkConstraintParams()
	l.checkDuplicates()
	l.checkConflicts()

	issues := l.issues
	if issues == nil {
		issues = []Issue{}
	}
	ok := true
	for _, is := range issues {
		if is.Severity == SeverityError {
			ok = false
			break
		}
	}
	return Report{OK: ok, Issues: issues}
}

func (l *linter) add(sev Severity, code, path, msg string, meta map[string]any) {
	l.issues = append(l.issues, Issue{Severity: sev, Code: code, Message: msg, Path: path, Meta: meta})
}

func outOfRange(v float64) bool {
	return math.IsNaN(v) || v < 0 || v > 1
}

func (l *linter) checkThresholds() {
	if thr := l.p.UncertaintyThreshold; outOfRange(thr) {
		l.add(SeverityError, CodeThresholdOutOfRange, "uncertaintyThreshold",
			fmt.Sprintf("uncertaintyThreshold must be within [0,1], got %s", policy.FormatNumber(thr)),
			map[string]any{"value": thr})
	}
	for i, rule := range l.p.ContextRules {
		thr := rule.Adjust.UncertaintyThreshold
		if thr == nil || !outOfRange(*thr) {
			continue
		}
		l.add(SeverityError, CodeThresholdOutOfRange,
			fmt.Sprintf("contextRules[%d].adjust.uncertaintyThreshold", i),
			fmt.Sprintf("Context %q sets uncertaintyThreshold outside [0,1]: %s", rule.Context, policy.FormatNumber(*thr)),
			map[string]any{"context": rule.Context, "value": *thr})
	}
}

func (l *linter) checkNegativeWeights() {
	for _, k := range policy.SortedKeys(l.p.Weights) {
		if v := l.p.Weights[k]; v < 0 {
			l.add(SeverityWarn, CodeNegativeWeight, "weights."+k,
				fmt.Sprintf("Weight %q is negative (%s). Negative weights are usually unintended.", k, policy.FormatNumber(v)),
				map[string]any{"key": k, "value": v})
		}
	}
}

func (l *linter) checkWeightSum() {
	sum := 0.0
	for _, k := range policy.SortedKeys(l.p.Weights) {
		sum += math.Max(0, l.p.Weights[k])
	}
	if sum == 0 {
		l.add(SeverityError, CodeWeightsSumZero, "weights",
			"All weights are zero (or negative). The agent cannot meaningfully score surviving plans.", nil)
	}
}

func (l *linter) checkScorers() {
	for _, k := range policy.SortedKeys(l.p.Weights) {
		if !l.deps.Scorers.Has(k) {
			l.add(SeverityWarn, CodeMissingScorer, "weights."+k,
				fmt.Sprintf("Weight %q has no registered scorer. It will contribute 0 utility.", k),
				map[string]any{"key": k})
		}
	}
}

// located is a constraint spec together with its document path.
type located struct {
	spec policy.ConstraintSpec
	path string
}

// specs lists top-level constraints first, then context-rule additions, in
// declaration order.
func (l *linter) specs() []located {
	var out []located
	for i, s := range l.p.Constraints {
		out = append(out, located{spec: s, path: fmt.Sprintf("constraints[%d]", i)})
	}
	for ri, rule := range l.p.ContextRules {
		for j, s := range rule.Adjust.ConstraintsAdd {
			out = append(out, located{spec: s, path: fmt.Sprintf("contextRules[%d].adjust.constraintsAdd[%d]", ri, j)})
		}
	}
	return out
}

func (l *linter) checkUnknownConstraints() {
	for _, loc := range l.specs() {
		if !l.deps.Registry.Has(loc.spec.ID) {
			l.add(SeverityError, CodeUnknownConstraint, loc.path,
				fmt.Sprintf("Unknown constraint %q (will fail closed).", loc.spec.ID),
				map[string]any{"id": loc.spec.ID})
		}
	}
}

func (l *linter) checkConstraintParams() {
	for _, loc := range l.specs() {
		res, known := l.deps.Registry.Check(loc.spec)
		if !known || res.OK() {
			continue
		}
		l.add(SeverityError, CodeInvalidConstraintParams, loc.path,
			fmt.Sprintf("Invalid params for %q: %s", loc.spec.ID, res.Message()),
			map[string]any{"id": loc.spec.ID, "errors": res.Errors})
	}
}

func (l *linter) checkDuplicates() {
	first := make(map[string]int)
	for i, s := range l.p.Constraints {
		key := s.Key()
		if prev, ok := first[key]; ok {
			l.add(SeverityWarn, CodeDuplicateConstraint, fmt.Sprintf("constraints[%d]", i),
				fmt.Sprintf("Duplicate constraint %q with identical params.", s.ID),
				map[string]any{"id": s.ID, "first": prev})
			continue
		}
		first[key] = i
	}
}

func (l *linter) checkConflicts() {
	for ri, rule := range l.p.ContextRules {
		removed := make(map[string]struct{}, len(rule.Adjust.ConstraintsRemove))
		for _, id := range rule.Adjust.ConstraintsRemove {
			removed[id] = struct{}{}
		}
		reported := make(map[string]struct{})
		for _, s := range rule.Adjust.ConstraintsAdd {
			if _, ok := removed[s.ID]; !ok {
				continue
			}
			if _, ok := reported[s.ID]; ok {
				continue
			}
			reported[s.ID] = struct{}{}
			l.add(SeverityWarn, CodeContextConstraintConflict, fmt.Sprintf("contextRules[%d].adjust", ri),
				fmt.Sprintf("Context rule adds and removes %q in the same adjustment. Remove one side.", s.ID),
				map[string]any{"context": rule.Context, "id": s.ID})
		}
	}
}
