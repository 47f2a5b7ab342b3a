// Package policytest provides generators of random policies and plans for
// property tests.
package policytest

import (
	"math/rand"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"

	"civility-hq/kernel/pkg/policy"
)

var (
	weightKeys = []string{"efficiency", "low_risk", "concise", "vibes"}
	weightVals = []float64{-1, 0, 0.25, 0.5, 1, 2}
	thresholds = []float64{-0.2, 0, 0.3, 0.6, 1, 1.5}
	contexts   = []string{"work", "finance", "chat"}
	tags       = []string{policy.TagSpendMoney, policy.TagIrreversible, policy.TagContactExternal, policy.TagDeleteFile}
)

// SpecPool returns a mix of valid, invalid and unknown constraint specs.
func SpecPool() []policy.ConstraintSpec {
	return []policy.ConstraintSpec{
		policy.Bare("no_irreversible_changes"),
		policy.WithParams("max_spend_without_confirm", map[string]any{"amount": 20.0}),
		policy.WithParams("max_spend_without_confirm", map[string]any{"amount": 5, "currency": "USD"}),
		policy.WithParams("max_spend_without_confirm", map[string]any{"amount": -1.0}),
		policy.WithParams("require_confirm_if", map[string]any{"stakeGte": 0.7}),
		policy.WithParams("require_confirm_if", map[string]any{"stakeGte": 0.5, "irreversible": true}),
		policy.Bare("require_confirm_if"),
		policy.Bare("does_not_exist"),
		policy.WithParams("does_not_exist", map[string]any{"x": []any{1.0, "two"}}),
	}
}

// GenPolicy generates random policies.
func GenPolicy() gopter.Gen {
	return gen.Int64().Map(func(seed int64) *policy.Policy {
		return RandomPolicy(rand.New(rand.NewSource(seed)))
	})
}

// GenPolicyPair generates two independent random policies.
func GenPolicyPair() gopter.Gen {
	return gen.Int64().Map(func(seed int64) [2]*policy.Policy {
		r := rand.New(rand.NewSource(seed))
		return [2]*policy.Policy{RandomPolicy(r), RandomPolicy(r)}
	})
}

// GenPlans generates random plan batches, possibly empty.
func GenPlans() gopter.Gen {
	return gen.Int64().Map(func(seed int64) []policy.Plan {
		return RandomPlans(rand.New(rand.NewSource(seed)))
	})
}

// RandomPolicy builds a policy from r.
func RandomPolicy(r *rand.Rand) *policy.Policy {
	p := &policy.Policy{
		Version:              "1",
		Weights:              randomWeights(r),
		Constraints:          randomSpecs(r, 5),
		UncertaintyThreshold: pick(r, thresholds),
		Calibration: policy.Calibration{
			RiskTolerance: float64(r.Intn(11)) / 10,
			Verbosity:     float64(r.Intn(11)) / 10,
			Initiative:    float64(r.Intn(11)) / 10,
		},
	}

	for i, n := 0, r.Intn(4); i < n; i++ {
		rule := policy.ContextRule{Context: pick(r, contexts)}
		if r.Intn(2) == 0 {
			rule.When = &policy.Condition{}
			if r.Intn(2) == 0 {
				rule.When.MinStake = policy.Float(float64(r.Intn(11)) / 10)
			}
			if r.Intn(2) == 0 {
				rule.When.MaxUncertainty = policy.Float(float64(r.Intn(11)) / 10)
			}
			if r.Intn(3) == 0 {
				rule.When.TagsAny = []string{pick(r, tags)}
			}
		}
		if r.Intn(2) == 0 {
			rule.Adjust.Weights = randomWeights(r)
		}
		if r.Intn(2) == 0 {
			rule.Adjust.ConstraintsAdd = randomSpecs(r, 3)
		}
		if r.Intn(2) == 0 {
			pool := SpecPool()
			rule.Adjust.ConstraintsRemove = []string{pool[r.Intn(len(pool))].ID}
		}
		if r.Intn(2) == 0 {
			rule.Adjust.UncertaintyThreshold = policy.Float(pick(r, thresholds))
		}
		if r.Intn(3) == 0 {
			rule.Adjust.Calibration = &policy.CalibrationPatch{Verbosity: policy.Float(float64(r.Intn(11)) / 10)}
		}
		p.ContextRules = append(p.ContextRules, rule)
	}
	return p
}

// RandomPlans builds up to four plans from r.
func RandomPlans(r *rand.Rand) []policy.Plan {
	var plans []policy.Plan
	for i, n := 0, r.Intn(5); i < n; i++ {
		plan := policy.Plan{ID: string(rune('a' + i))}
		if r.Intn(2) == 0 {
			plan.Meta.Stake = policy.Float(float64(r.Intn(11)) / 10)
		}
		if r.Intn(2) == 0 {
			plan.Meta.Uncertainty = policy.Float(float64(r.Intn(11)) / 10)
		}
		if r.Intn(2) == 0 {
			plan.Meta.Reversibility = policy.Int(r.Intn(2))
		}
		if r.Intn(2) == 0 {
			plan.Meta.EstimatedCost = policy.Float(float64(r.Intn(100)))
		}
		if r.Intn(2) == 0 {
			plan.Meta.Tags = []string{pick(r, tags)}
		}
		plans = append(plans, plan)
	}
	return plans
}

func randomWeights(r *rand.Rand) map[string]float64 {
	w := map[string]float64{}
	for _, k := range weightKeys {
		if r.Intn(2) == 0 {
			w[k] = pick(r, weightVals)
		}
	}
	return w
}

func randomSpecs(r *rand.Rand, limit int) []policy.ConstraintSpec {
	pool := SpecPool()
	specs := []policy.ConstraintSpec{}
	for i, n := 0, r.Intn(limit+1); i < n; i++ {
		specs = append(specs, pool[r.Intn(len(pool))].Clone())
	}
	return specs
}

func pick[T any](r *rand.Rand, from []T) T {
	return from[r.Intn(len(from))]
}
