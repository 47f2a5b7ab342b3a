// Package compile derives the effective policy for a decision: the base
// policy with every matching context rule applied, in order, and the
// weights renormalized.
package compile

import (
	"math"

	"civility-hq/kernel/pkg/policy"
)

// Effective returns the policy in force for context given the candidate
// batch. The base policy and plans are not modified.
func Effective(base *policy.Policy, context string, plans []policy.Plan) *policy.Policy {
	eff := base.Clone()
	if eff == nil {
		eff = &policy.Policy{}
	}

	for _, i := range MatchingRules(base, context, plans) {
		apply(eff, eff.ContextRules[i].Adjust)
	}

	eff.Weights = Normalize(eff.Weights)
	return eff
}

// MatchingRules returns the indexes of the context rules of p that apply
// to context for the given batch, in declaration order.
func MatchingRules(p *policy.Policy, context string, plans []policy.Plan) []int {
	if p == nil {
		return nil
	}
	var idx []int
	for i, rule := range p.ContextRules {
		if rule.Context == context && Holds(rule.When, plans) {
			idx = append(idx, i)
		}
	}
	return idx
}

// Holds evaluates a rule condition over the whole batch. A nil condition
// always holds. The maximum over an empty batch is 0.
func Holds(when *policy.Condition, plans []policy.Plan) bool {
	if when == nil {
		return true
	}

	if when.MinStake != nil {
		if maxOf(plans, func(m policy.PlanMeta) float64 { return m.StakeOr(0) }) < *when.MinStake {
			return false
		}
	}

	if when.MaxUncertainty != nil {
		if maxOf(plans, func(m policy.PlanMeta) float64 { return m.UncertaintyOr(0) }) > *when.MaxUncertainty {
			return false
		}
	}

	if when.TagsAny != nil {
		tags := make(map[string]struct{})
		for _, plan := range plans {
			for _, t := range plan.Meta.Tags {
				tags[t] = struct{}{}
			}
		}
		found := false
		for _, t := range when.TagsAny {
			if _, ok := tags[t]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// MaxUncertainty returns the largest plan uncertainty, 0 for an empty batch.
func MaxUncertainty(plans []policy.Plan) float64 {
	return maxOf(plans, func(m policy.PlanMeta) float64 { return m.UncertaintyOr(0) })
}

func maxOf(plans []policy.Plan, field func(policy.PlanMeta) float64) float64 {
	if len(plans) == 0 {
		return 0
	}
	hi := math.Inf(-1)
	for _, plan := range plans {
		if v := field(plan.Meta); v > hi {
			hi = v
		}
	}
	return hi
}

func apply(eff *policy.Policy, adj policy.Adjustment) {
	if len(adj.Weights) > 0 {
		if eff.Weights == nil {
			eff.Weights = make(map[string]float64, len(adj.Weights))
		}
		for k, v := range adj.Weights {
			eff.Weights[k] = v
		}
	}

	if len(adj.ConstraintsAdd) > 0 {
		eff.Constraints = union(eff.Constraints, adj.ConstraintsAdd)
	}

	if len(adj.ConstraintsRemove) > 0 {
		remove := make(map[string]struct{}, len(adj.ConstraintsRemove))
		for _, id := range adj.ConstraintsRemove {
			remove[id] = struct{}{}
		}
		kept := eff.Constraints[:0:0]
		for _, spec := range eff.Constraints {
			if _, ok := remove[spec.ID]; !ok {
				kept = append(kept, spec)
			}
		}
		eff.Constraints = kept
	}

	if adj.UncertaintyThreshold != nil {
		eff.UncertaintyThreshold = clamp01(*adj.UncertaintyThreshold)
	}

	eff.Calibration = adj.Calibration.Apply(eff.Calibration)
}

// union appends add to specs, keeping the first occurrence of each spec
// identity.
func union(specs, add []policy.ConstraintSpec) []policy.ConstraintSpec {
	seen := make(map[string]struct{}, len(specs)+len(add))
	out := make([]policy.ConstraintSpec, 0, len(specs)+len(add))
	for _, list := range [][]policy.ConstraintSpec{specs, add} {
		for _, spec := range list {
			key := spec.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, spec.Clone())
		}
	}
	return out
}

// Normalize returns a copy of weights with negative values set to 0 and
// the rest scaled to sum to 1. When nothing positive remains every weight
// is 0.
func Normalize(weights map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	sum := 0.0
	for _, k := range policy.SortedKeys(weights) {
		v := weights[k]
		if v < 0 || math.IsNaN(v) {
			v = 0
		}
		out[k] = v
		sum += v
	}
	if sum <= 0 || math.IsInf(sum, 0) {
		for k := range out {
			out[k] = 0
		}
		return out
	}
	for k, v := range out {
		out[k] = v / sum
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
