package compile

import (
	"math"
	"reflect"
	"testing"

	"civility-hq/kernel/pkg/policy"
)

func spendPolicy() *policy.Policy {
	return &policy.Policy{
		Version: "1",
		Weights: map[string]float64{"efficiency": 3, "low_risk": 1},
		Constraints: []policy.ConstraintSpec{
			policy.Bare("no_irreversible_changes"),
			policy.WithParams("max_spend_without_confirm", map[string]any{"amount": 20.0}),
		},
		UncertaintyThreshold: 0.6,
		Calibration:          policy.Calibration{RiskTolerance: 0.5, Verbosity: 0.5, Initiative: 0.5},
		ContextRules: []policy.ContextRule{
			{
				Context: "finance",
				When:    &policy.Condition{MinStake: policy.Float(0.5)},
				Adjust: policy.Adjustment{
					Weights:              map[string]float64{"low_risk": 3},
					ConstraintsAdd:       []policy.ConstraintSpec{policy.WithParams("require_confirm_if", map[string]any{"stakeGte": 0.7})},
					UncertaintyThreshold: policy.Float(1.4),
					Calibration:          &policy.CalibrationPatch{RiskTolerance: policy.Float(0.1)},
				},
			},
			{
				Context: "finance",
				Adjust: policy.Adjustment{
					ConstraintsRemove: []string{"max_spend_without_confirm"},
				},
			},
			{
				Context: "chat",
				Adjust:  policy.Adjustment{UncertaintyThreshold: policy.Float(0.1)},
			},
		},
	}
}

func TestEffective_AppliesMatchingRulesInOrder(t *testing.T) {
	base := spendPolicy()
	plans := []policy.Plan{{ID: "a", Meta: policy.PlanMeta{Stake: policy.Float(0.8)}}}

	eff := Effective(base, "finance", plans)

	if eff.UncertaintyThreshold != 1 {
		t.Errorf("UncertaintyThreshold = %v, want clamped 1", eff.UncertaintyThreshold)
	}
	if eff.Calibration.RiskTolerance != 0.1 || eff.Calibration.Verbosity != 0.5 {
		t.Errorf("Calibration = %+v, want riskTolerance overlaid only", eff.Calibration)
	}
	if math.Abs(eff.Weights["efficiency"]-0.5) > 1e-12 || math.Abs(eff.Weights["low_risk"]-0.5) > 1e-12 {
		t.Errorf("Weights = %v, want efficiency=0.5 low_risk=0.5", eff.Weights)
	}

	var ids []string
	for _, c := range eff.Constraints {
		ids = append(ids, c.ID)
	}
	want := []string{"no_irreversible_changes", "require_confirm_if"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("constraint ids = %v, want %v", ids, want)
	}
}

func TestEffective_WhenNotHolding(t *testing.T) {
	base := spendPolicy()
	plans := []policy.Plan{{ID: "a", Meta: policy.PlanMeta{Stake: policy.Float(0.2)}}}

	eff := Effective(base, "finance", plans)

	if eff.UncertaintyThreshold != 0.6 {
		t.Errorf("UncertaintyThreshold = %v, want unchanged 0.6", eff.UncertaintyThreshold)
	}
	// the unconditional finance rule still applies
	if len(eff.Constraints) != 1 || eff.Constraints[0].ID != "no_irreversible_changes" {
		t.Errorf("Constraints = %v, want only no_irreversible_changes", eff.Constraints)
	}
}

func TestEffective_DoesNotMutateInputs(t *testing.T) {
	base := spendPolicy()
	before := base.Clone()
	plans := []policy.Plan{{ID: "a", Meta: policy.PlanMeta{Stake: policy.Float(0.9), Tags: []string{"x"}}}}
	plansBefore := []policy.Plan{plans[0].Clone()}

	eff := Effective(base, "finance", plans)
	eff.Weights["efficiency"] = 99
	eff.Constraints[0].ID = "changed"

	if !reflect.DeepEqual(base, before) {
		t.Errorf("Effective() mutated base policy")
	}
	if !reflect.DeepEqual(plans, plansBefore) {
		t.Errorf("Effective() mutated plans")
	}
}

func TestEffective_NoMatchingContext(t *testing.T) {
	base := spendPolicy()
	eff := Effective(base, "unknown", nil)
	if eff.UncertaintyThreshold != 0.6 || len(eff.Constraints) != 2 {
		t.Errorf("Effective() = %+v, want base semantics", eff)
	}
	if math.Abs(eff.Weights["efficiency"]-0.75) > 1e-12 {
		t.Errorf("efficiency = %v, want 0.75", eff.Weights["efficiency"])
	}
}

func TestEffective_NilBase(t *testing.T) {
	eff := Effective(nil, "x", nil)
	if eff == nil || len(eff.Weights) != 0 {
		t.Errorf("Effective(nil) = %+v, want empty policy", eff)
	}
}

func TestEffective_AddDeduplicatesByIdentity(t *testing.T) {
	base := &policy.Policy{
		Weights: map[string]float64{"a": 1},
		Constraints: []policy.ConstraintSpec{
			policy.WithParams("max_spend_without_confirm", map[string]any{"amount": 20.0}),
		},
		ContextRules: []policy.ContextRule{{
			Context: "c",
			Adjust: policy.Adjustment{ConstraintsAdd: []policy.ConstraintSpec{
				policy.WithParams("max_spend_without_confirm", map[string]any{"amount": 20}),
				policy.WithParams("max_spend_without_confirm", map[string]any{"amount": 5.0}),
			}},
		}},
	}

	eff := Effective(base, "c", nil)
	if len(eff.Constraints) != 2 {
		t.Fatalf("len(Constraints) = %d, want 2 (identical spec deduplicated, different params kept)", len(eff.Constraints))
	}
	if eff.Constraints[1].Params["amount"] != 5.0 {
		t.Errorf("Constraints[1] = %v, want amount 5", eff.Constraints[1])
	}
}

func TestHolds(t *testing.T) {
	plans := []policy.Plan{
		{Meta: policy.PlanMeta{Stake: policy.Float(0.3), Uncertainty: policy.Float(0.2), Tags: []string{"spend_money"}}},
		{Meta: policy.PlanMeta{Stake: policy.Float(0.6), Uncertainty: policy.Float(0.4)}},
	}

	tests := []struct {
		name  string
		when  *policy.Condition
		plans []policy.Plan
		want  bool
	}{
		{"nil condition", nil, plans, true},
		{"max stake meets minStake", &policy.Condition{MinStake: policy.Float(0.6)}, plans, true},
		{"max stake below minStake", &policy.Condition{MinStake: policy.Float(0.7)}, plans, false},
		{"max uncertainty within bound", &policy.Condition{MaxUncertainty: policy.Float(0.4)}, plans, true},
		{"max uncertainty above bound", &policy.Condition{MaxUncertainty: policy.Float(0.3)}, plans, false},
		{"tag in union", &policy.Condition{TagsAny: []string{"irreversible", "spend_money"}}, plans, true},
		{"tag absent", &policy.Condition{TagsAny: []string{"irreversible"}}, plans, false},
		{"empty tag list never holds", &policy.Condition{TagsAny: []string{}}, plans, false},
		{"empty batch max is zero", &policy.Condition{MinStake: policy.Float(0)}, nil, true},
		{"empty batch fails positive minStake", &policy.Condition{MinStake: policy.Float(0.1)}, nil, false},
		{"all fields must hold", &policy.Condition{MinStake: policy.Float(0.5), TagsAny: []string{"nope"}}, plans, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Holds(tt.when, tt.plans); got != tt.want {
				t.Errorf("Holds() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]float64
		want map[string]float64
	}{
		{"scales to one", map[string]float64{"a": 1, "b": 3}, map[string]float64{"a": 0.25, "b": 0.75}},
		{"negatives become zero", map[string]float64{"a": -1, "b": 2}, map[string]float64{"a": 0, "b": 1}},
		{"all zero stays zero", map[string]float64{"a": 0, "b": 0}, map[string]float64{"a": 0, "b": 0}},
		{"all negative becomes zero", map[string]float64{"a": -1}, map[string]float64{"a": 0}},
		{"empty", map[string]float64{}, map[string]float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchingRules(t *testing.T) {
	base := spendPolicy()
	got := MatchingRules(base, "finance", []policy.Plan{{Meta: policy.PlanMeta{Stake: policy.Float(0.9)}}})
	if !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("MatchingRules() = %v, want [0 1]", got)
	}
}
