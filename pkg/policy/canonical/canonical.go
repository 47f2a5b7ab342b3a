// Package canonical normalizes a policy into its canonical form: defaults
// filled from the registered parameter schemas and every list and map in a
// deterministic order. Canonicalization is idempotent.
package canonical

import (
	"sort"

	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/constraints"
)

// Policy returns the canonical form of p. The input is not modified. A nil
// registry leaves constraint parameters as written.
func Policy(p *policy.Policy, reg *constraints.Registry) *policy.Policy {
	out := p.Clone()
	if out == nil {
		out = &policy.Policy{}
	}

	if out.Weights == nil {
		out.Weights = map[string]float64{}
	}
	out.Constraints = Specs(out.Constraints, reg)
	if out.Constraints == nil {
		out.Constraints = []policy.ConstraintSpec{}
	}
	if out.ContextRules == nil {
		out.ContextRules = []policy.ContextRule{}
	}

	for i := range out.ContextRules {
		adj := &out.ContextRules[i].Adjust
		if adj.ConstraintsAdd != nil {
			adj.ConstraintsAdd = Specs(adj.ConstraintsAdd, reg)
		}
		if adj.ConstraintsRemove != nil {
			sort.Strings(adj.ConstraintsRemove)
		}
	}

	return out
}

// Specs canonicalizes every spec and sorts the list by id, then by
// canonical parameter JSON.
func Specs(specs []policy.ConstraintSpec, reg *constraints.Registry) []policy.ConstraintSpec {
	if specs == nil {
		return nil
	}
	out := make([]policy.ConstraintSpec, len(specs))
	for i, s := range specs {
		out[i] = Spec(s, reg)
	}
	SortSpecs(out)
	return out
}

// Spec canonicalizes one spec. When the registry has a schema for the id
// and the parameters validate, the parameters are replaced by the parsed
// value; a spec with no parameters left collapses to the bare id.
func Spec(s policy.ConstraintSpec, reg *constraints.Registry) policy.ConstraintSpec {
	out := s.Clone()
	if sch := reg.Schema(s.ID); sch != nil {
		if res := sch.Parse(s.Params); res.OK() {
			out.Params = res.Value
		}
	}
	if len(out.Params) == 0 {
		out.Params = nil
	}
	return out
}

// SortSpecs sorts specs in place by id, then by canonical parameter JSON.
func SortSpecs(specs []policy.ConstraintSpec) {
	keys := make([]string, len(specs))
	for i, s := range specs {
		keys[i] = policy.CanonicalJSON(s.ParamsOrEmpty())
	}
	sort.Stable(bySpec{specs: specs, keys: keys})
}

type bySpec struct {
	specs []policy.ConstraintSpec
	keys  []string
}

func (b bySpec) Len() int { return len(b.specs) }

func (b bySpec) Less(i, j int) bool {
	if b.specs[i].ID != b.specs[j].ID {
		return b.specs[i].ID < b.specs[j].ID
	}
	return b.keys[i] < b.keys[j]
}

func (b bySpec) Swap(i, j int) {
	b.specs[i], b.specs[j] = b.specs[j], b.specs[i]
	b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
}
