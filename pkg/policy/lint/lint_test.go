package lint

import (
	"reflect"
	"strings"
	"testing"

	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/constraints"
	"civility-hq/kernel/pkg/policy/scoring"
)

func deps() Deps {
	return Deps{Registry: constraints.NewDefaultRegistry(), Scorers: scoring.NewDefaultRegistry()}
}

func cleanPolicy() *policy.Policy {
	return &policy.Policy{
		Version:              "1",
		Weights:              map[string]float64{"efficiency": 1, "low_risk": 1},
		Constraints:          []policy.ConstraintSpec{policy.Bare(constraints.NoIrreversibleChanges)},
		UncertaintyThreshold: 0.5,
	}
}

func TestPolicy_Clean(t *testing.T) {
	got := Policy(cleanPolicy(), deps())
	if !got.OK || len(got.Issues) != 0 {
		t.Errorf("Policy() = %+v, want ok with no issues", got)
	}
}

func TestPolicy_UnknownConstraint(t *testing.T) {
	p := cleanPolicy()
	p.Constraints = append(p.Constraints, policy.Bare("does_not_exist"))

	got := Policy(p, deps())
	if got.OK {
		t.Error("OK = true, want false")
	}
	if len(got.Issues) != 1 {
		t.Fatalf("Issues = %+v, want one", got.Issues)
	}
	is := got.Issues[0]
	if is.Code != CodeUnknownConstraint || is.Severity != SeverityError || is.Path != "constraints[1]" {
		t.Errorf("Issue = %+v", is)
	}
	if is.Message != `Unknown constraint "does_not_exist" (will fail closed).` {
		t.Errorf("Message = %q", is.Message)
	}
}

func TestPolicy_Checks(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(p *policy.Policy)
		deps      Deps
		wantCodes []string
		wantOK    bool
	}{
		{
			name:      "threshold above one",
			mutate:    func(p *policy.Policy) { p.UncertaintyThreshold = 1.2 },
			wantCodes: []string{CodeThresholdOutOfRange},
		},
		{
			name: "context threshold below zero",
			mutate: func(p *policy.Policy) {
				p.ContextRules = []policy.ContextRule{{Context: "c", Adjust: policy.Adjustment{UncertaintyThreshold: policy.Float(-0.1)}}}
			},
			wantCodes: []string{CodeThresholdOutOfRange},
		},
		{
			name:      "negative weight is a warning",
			mutate:    func(p *policy.Policy) { p.Weights["low_risk"] = -1 },
			wantCodes: []string{CodeNegativeWeight},
			wantOK:    true,
		},
		{
			name:      "all weights non-positive",
			mutate:    func(p *policy.Policy) { p.Weights = map[string]float64{"efficiency": 0, "low_risk": -1} },
			wantCodes: []string{CodeNegativeWeight, CodeWeightsSumZero},
		},
		{
			name:      "no weights",
			mutate:    func(p *policy.Policy) { p.Weights = nil },
			wantCodes: []string{CodeWeightsSumZero},
		},
		{
			name:      "missing scorer is a warning",
			mutate:    func(p *policy.Policy) { p.Weights["vibes"] = 1 },
			wantCodes: []string{CodeMissingScorer},
			wantOK:    true,
		},
		{
			name:   "missing scorer skipped without scorer registry",
			mutate: func(p *policy.Policy) { p.Weights["vibes"] = 1 },
			deps:   Deps{Registry: constraints.NewDefaultRegistry()},
			wantOK: true,
		},
		{
			name: "invalid params",
			mutate: func(p *policy.Policy) {
				p.Constraints = append(p.Constraints, policy.WithParams(constraints.MaxSpendWithoutConfirm, map[string]any{"amount": -3.0}))
			},
			wantCodes: []string{CodeInvalidConstraintParams},
		},
		{
			name: "unknown and invalid inside context rule",
			mutate: func(p *policy.Policy) {
				p.ContextRules = []policy.ContextRule{{Context: "c", Adjust: policy.Adjustment{ConstraintsAdd: []policy.ConstraintSpec{
					policy.Bare("nope"),
					policy.Bare(constraints.RequireConfirmIf),
				}}}}
			},
			wantCodes: []string{CodeUnknownConstraint, CodeInvalidConstraintParams},
		},
		{
			name: "duplicate top-level constraint",
			mutate: func(p *policy.Policy) {
				p.Constraints = append(p.Constraints, policy.WithParams(constraints.NoIrreversibleChanges, map[string]any{}))
			},
			wantCodes: []string{CodeDuplicateConstraint},
			wantOK:    true,
		},
		{
			name: "same id different params is not a duplicate",
			mutate: func(p *policy.Policy) {
				p.Constraints = []policy.ConstraintSpec{
					policy.WithParams(constraints.MaxSpendWithoutConfirm, map[string]any{"amount": 1.0}),
					policy.WithParams(constraints.MaxSpendWithoutConfirm, map[string]any{"amount": 2.0}),
				}
			},
			wantOK: true,
		},
		{
			name: "context rule adds and removes the same id",
			mutate: func(p *policy.Policy) {
				p.ContextRules = []policy.ContextRule{{Context: "c", Adjust: policy.Adjustment{
					ConstraintsAdd:    []policy.ConstraintSpec{policy.Bare(constraints.NoIrreversibleChanges)},
					ConstraintsRemove: []string{constraints.NoIrreversibleChanges},
				}}}
			},
			wantCodes: []string{CodeContextConstraintConflict},
			wantOK:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := cleanPolicy()
			tt.mutate(p)
			d := tt.deps
			if d.Registry == nil {
				d = deps()
			}

			got := Policy(p, d)
			codes := got.Codes()
			if len(codes) == 0 {
				codes = nil
			}
			if !reflect.DeepEqual(codes, tt.wantCodes) {
				t.Errorf("codes = %v, want %v", codes, tt.wantCodes)
			}
			if got.OK != tt.wantOK {
				t.Errorf("OK = %v, want %v", got.OK, tt.wantOK)
			}
		})
	}
}

func TestPolicy_CheckOrder(t *testing.T) {
	p := &policy.Policy{
		Weights: map[string]float64{"vibes": -1},
		Constraints: []policy.ConstraintSpec{
			policy.Bare("unknown_a"),
			policy.WithParams(constraints.MaxSpendWithoutConfirm, map[string]any{"amount": "lots"}),
			policy.Bare("unknown_a"),
		},
		UncertaintyThreshold: 2,
		ContextRules: []policy.ContextRule{{
			Context: "c",
			Adjust: policy.Adjustment{
				UncertaintyThreshold: policy.Float(3),
				ConstraintsAdd:       []policy.ConstraintSpec{policy.Bare("unknown_b")},
				ConstraintsRemove:    []string{"unknown_b"},
			},
		}},
	}

	got := Policy(p, deps())

	wantCodes := []string{
		CodeThresholdOutOfRange, CodeThresholdOutOfRange,
		CodeNegativeWeight,
		CodeWeightsSumZero,
		CodeMissingScorer,
		CodeUnknownConstraint, CodeUnknownConstraint, CodeUnknownConstraint,
		CodeInvalidConstraintParams,
		CodeDuplicateConstraint,
		CodeContextConstraintConflict,
	}
	if !reflect.DeepEqual(got.Codes(), wantCodes) {
		t.Errorf("codes = %v\nwant %v", got.Codes(), wantCodes)
	}

	wantPaths := []string{
		"uncertaintyThreshold", "contextRules[0].adjust.uncertaintyThreshold",
		"weights.vibes", "weights", "weights.vibes",
		"constraints[0]", "constraints[2]", "contextRules[0].adjust.constraintsAdd[0]",
		"constraints[1]", "constraints[2]", "contextRules[0].adjust",
	}
	for i, is := range got.Issues {
		if is.Path != wantPaths[i] {
			t.Errorf("Issues[%d].Path = %q, want %q", i, is.Path, wantPaths[i])
		}
	}
	if got.OK || len(got.Errors()) != 7 || !got.HasWarnings() {
		t.Errorf("OK=%v errors=%d warnings=%v", got.OK, len(got.Errors()), got.HasWarnings())
	}
}

func TestPolicy_Messages(t *testing.T) {
	p := &policy.Policy{
		Weights:              map[string]float64{"efficiency": -0.5},
		UncertaintyThreshold: 1.5,
		ContextRules: []policy.ContextRule{{Context: "work", Adjust: policy.Adjustment{UncertaintyThreshold: policy.Float(-1)}}},
	}
	got := Policy(p, deps())

	want := []string{
		"uncertaintyThreshold must be within [0,1], got 1.5",
		`Context "work" sets uncertaintyThreshold outside [0,1]: -1`,
		`Weight "efficiency" is negative (-0.5). Negative weights are usually unintended.`,
		"All weights are zero (or negative). The agent cannot meaningfully score surviving plans.",
	}
	for i, w := range want {
		if got.Issues[i].Message != w {
			t.Errorf("Issues[%d].Message = %q, want %q", i, got.Issues[i].Message, w)
		}
	}
}

func TestPolicy_InvalidParamsMessage(t *testing.T) {
	p := cleanPolicy()
	p.Constraints = []policy.ConstraintSpec{policy.Bare(constraints.MaxSpendWithoutConfirm)}
	got := Policy(p, deps())
	if len(got.Issues) != 1 || !strings.HasPrefix(got.Issues[0].Message, `Invalid params for "max_spend_without_confirm": `) {
		t.Errorf("Issues = %+v", got.Issues)
	}
}
