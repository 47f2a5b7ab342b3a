// Package diff compares two policies and reports typed change items.
package diff

import (
	"fmt"

	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/constraints"
)

// Kind identifies the type of a change item.
type Kind string

const (
	ThresholdChanged   Kind = "threshold_changed"
	CalibrationChanged Kind = "calibration_changed"
	WeightAdded        Kind = "weight_added"
	WeightRemoved      Kind = "weight_removed"
	WeightChanged      Kind = "weight_changed"
	ConstraintAdded    Kind = "constraint_added"
	ConstraintRemoved  Kind = "constraint_removed"
	ContextRuleAdded   Kind = "context_rule_added"
	ContextRuleRemoved Kind = "context_rule_removed"
	ContextRuleChanged Kind = "context_rule_changed"
)

// Item is one change between two policies.
type Item struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Path    string         `json:"path,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Result lists the changes from a to b in a stable order.
type Result struct {
	Changed bool   `json:"changed"`
	Items   []Item `json:"items"`
}

// Count returns the number of items of the given kind.
func (r Result) Count(kind Kind) int {
	n := 0
	for _, it := range r.Items {
		if it.Kind == kind {
			n++
		}
	}
	return n
}

// Policies reports the changes that turn a into b. The registry is
// optional; when given, constraint messages use handler descriptions.
func Policies(a, b *policy.Policy, reg *constraints.Registry) Result {
	if a == nil {
		a = &policy.Policy{}
	}
	if b == nil {
		b = &policy.Policy{}
	}

	var items []Item
	items = append(items, diffThreshold(a, b)...)
	items = append(items, diffCalibration(a.Calibration, b.Calibration)...)
	items = append(items, diffWeights(a.Weights, b.Weights)...)
	items = append(items, diffConstraints(a.Constraints, b.Constraints, reg)...)
	items = append(items, diffContextRules(a.ContextRules, b.ContextRules)...)

	if items == nil {
		items = []Item{}
	}
	return Result{Changed: len(items) > 0, Items: items}
}

func diffThreshold(a, b *policy.Policy) []Item {
	if a.UncertaintyThreshold == b.UncertaintyThreshold {
		return nil
	}
	return []Item{{
		Kind: ThresholdChanged,
		Message: fmt.Sprintf("Uncertainty threshold changed %s → %s",
			policy.FormatNumber(a.UncertaintyThreshold), policy.FormatNumber(b.UncertaintyThreshold)),
		Path: "uncertaintyThreshold",
		Meta: map[string]any{"before": a.UncertaintyThreshold, "after": b.UncertaintyThreshold},
	}}
}

func diffCalibration(a, b policy.Calibration) []Item {
	fields := []struct {
		name   string
		before float64
		after  float64
	}{
		{"riskTolerance", a.RiskTolerance, b.RiskTolerance},
		{"verbosity", a.Verbosity, b.Verbosity},
		{"initiative", a.Initiative, b.Initiative},
	}

	var items []Item
	for _, f := range fields {
		if f.before == f.after {
			continue
		}
		items = append(items, Item{
			Kind: CalibrationChanged,
			Message: fmt.Sprintf("Calibration %q changed %s → %s",
				f.name, policy.FormatNumber(f.before), policy.FormatNumber(f.after)),
			Path: "calibration." + f.name,
			Meta: map[string]any{"field": f.name, "before": f.before, "after": f.after},
		})
	}
	return items
}

func diffWeights(a, b map[string]float64) []Item {
	union := make(map[string]float64, len(a)+len(b))
	for k := range a {
		union[k] = 0
	}
	for k := range b {
		union[k] = 0
	}

	var items []Item
	for _, k := range policy.SortedKeys(union) {
		before, inA := a[k]
		after, inB := b[k]
		path := "weights." + k
		switch {
		case !inA:
			items = append(items, Item{
				Kind:    WeightAdded,
				Message: fmt.Sprintf("Weight %q added (%s)", k, policy.FormatNumber(after)),
				Path:    path,
				Meta:    map[string]any{"key": k, "after": after},
			})
		case !inB:
			items = append(items, Item{
				Kind:    WeightRemoved,
				Message: fmt.Sprintf("Weight %q removed (was %s)", k, policy.FormatNumber(before)),
				Path:    path,
				Meta:    map[string]any{"key": k, "before": before},
			})
		case before != after:
			items = append(items, Item{
				Kind:    WeightChanged,
				Message: fmt.Sprintf("Weight %q changed %s → %s", k, policy.FormatNumber(before), policy.FormatNumber(after)),
				Path:    path,
				Meta:    map[string]any{"key": k, "before": before, "after": after},
			})
		}
	}
	return items
}

func diffConstraints(a, b []policy.ConstraintSpec, reg *constraints.Registry) []Item {
	inA := keySet(a)
	inB := keySet(b)

	var items []Item
	for _, spec := range unique(b) {
		if _, ok := inA[spec.Key()]; !ok {
			items = append(items, Item{
				Kind:    ConstraintAdded,
				Message: "Constraint added: " + describe(spec, reg),
				Path:    "constraints",
				Meta:    map[string]any{"id": spec.ID, "params": policy.CloneMap(spec.Params)},
			})
		}
	}
	for _, spec := range unique(a) {
		if _, ok := inB[spec.Key()]; !ok {
			items = append(items, Item{
				Kind:    ConstraintRemoved,
				Message: "Constraint removed: " + describe(spec, reg),
				Path:    "constraints",
				Meta:    map[string]any{"id": spec.ID, "params": policy.CloneMap(spec.Params)},
			})
		}
	}
	return items
}

func describe(spec policy.ConstraintSpec, reg *constraints.Registry) string {
	if desc, ok := reg.Describe(spec); ok {
		return desc
	}
	return spec.String()
}

func keySet(specs []policy.ConstraintSpec) map[string]struct{} {
	set := make(map[string]struct{}, len(specs))
	for _, s := range specs {
		set[s.Key()] = struct{}{}
	}
	return set
}

// unique returns specs with repeated identities dropped, keeping order.
func unique(specs []policy.ConstraintSpec) []policy.ConstraintSpec {
	seen := make(map[string]struct{}, len(specs))
	var out []policy.ConstraintSpec
	for _, s := range specs {
		if _, ok := seen[s.Key()]; ok {
			continue
		}
		seen[s.Key()] = struct{}{}
		out = append(out, s)
	}
	return out
}

// rulesByContext indexes rules by context name. A context that appears
// more than once gets one key per occurrence: the first is the bare name,
// later ones are "name#2", "name#3" and so on, so an edit to any of them is
// reported. Order follows appearance.
func rulesByContext(rules []policy.ContextRule) ([]string, map[string]policy.ContextRule) {
	var order []string
	byCtx := make(map[string]policy.ContextRule, len(rules))
	seen := make(map[string]int, len(rules))
	for _, r := range rules {
		seen[r.Context]++
		key := r.Context
		if n := seen[r.Context]; n > 1 {
			key = fmt.Sprintf("%s#%d", r.Context, n)
		}
		order = append(order, key)
		byCtx[key] = r
	}
	return order, byCtx
}

func diffContextRules(a, b []policy.ContextRule) []Item {
	orderA, rulesA := rulesByContext(a)
	orderB, rulesB := rulesByContext(b)

	var items []Item
	for _, ctx := range orderB {
		rb := rulesB[ctx]
		ra, ok := rulesA[ctx]
		switch {
		case !ok:
			items = append(items, Item{
				Kind:    ContextRuleAdded,
				Message: "Context rule added: " + ctx,
				Path:    "contextRules",
				Meta:    map[string]any{"context": rb.Context, "after": rb.Clone()},
			})
		case !sameRule(ra, rb):
			items = append(items, Item{
				Kind:    ContextRuleChanged,
				Message: "Context rule changed: " + ctx,
				Path:    "contextRules",
				Meta:    map[string]any{"context": rb.Context, "before": ra.Clone(), "after": rb.Clone()},
			})
		}
	}
	for _, ctx := range orderA {
		if _, ok := rulesB[ctx]; !ok {
			items = append(items, Item{
				Kind:    ContextRuleRemoved,
				Message: "Context rule removed: " + ctx,
				Path:    "contextRules",
				Meta:    map[string]any{"context": rulesA[ctx].Context, "before": rulesA[ctx].Clone()},
			})
		}
	}
	return items
}

func sameRule(a, b policy.ContextRule) bool {
	return sameWhen(a.When, b.When) &&
		policy.CanonicalJSON(a.Adjust) == policy.CanonicalJSON(b.Adjust)
}

func sameWhen(a, b *policy.Condition) bool {
	if whenJSON(a) != whenJSON(b) {
		return false
	}
	// an empty tag list never holds, an absent one always does
	return (a == nil || a.TagsAny == nil) == (b == nil || b.TagsAny == nil)
}

func whenJSON(w *policy.Condition) string {
	if w == nil {
		return policy.CanonicalJSON(policy.Condition{})
	}
	return policy.CanonicalJSON(w)
}
