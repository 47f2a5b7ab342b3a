package policy

// Clone returns a deep structural copy of the policy. Nil maps and slices
// stay nil so that a clone compares equal to its source.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	out := &Policy{
		Version:              p.Version,
		Weights:              CloneWeights(p.Weights),
		Constraints:          CloneSpecs(p.Constraints),
		UncertaintyThreshold: p.UncertaintyThreshold,
		Memory:               CloneMap(p.Memory),
		Calibration:          p.Calibration,
	}
	if p.ContextRules != nil {
		out.ContextRules = make([]ContextRule, len(p.ContextRules))
		for i, r := range p.ContextRules {
			out.ContextRules[i] = r.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the rule.
func (r ContextRule) Clone() ContextRule {
	out := ContextRule{Context: r.Context, Adjust: r.Adjust.Clone()}
	if r.When != nil {
		w := Condition{
			MinStake:       cloneFloat(r.When.MinStake),
			MaxUncertainty: cloneFloat(r.When.MaxUncertainty),
			TagsAny:        cloneStrings(r.When.TagsAny),
		}
		out.When = &w
	}
	return out
}

// Clone returns a deep copy of the adjustment.
func (a Adjustment) Clone() Adjustment {
	out := Adjustment{
		Weights:              CloneWeights(a.Weights),
		ConstraintsAdd:       CloneSpecs(a.ConstraintsAdd),
		ConstraintsRemove:    cloneStrings(a.ConstraintsRemove),
		UncertaintyThreshold: cloneFloat(a.UncertaintyThreshold),
	}
	if a.Calibration != nil {
		c := CalibrationPatch{
			RiskTolerance: cloneFloat(a.Calibration.RiskTolerance),
			Verbosity:     cloneFloat(a.Calibration.Verbosity),
			Initiative:    cloneFloat(a.Calibration.Initiative),
		}
		out.Calibration = &c
	}
	return out
}

// Clone returns a deep copy of the plan.
func (p Plan) Clone() Plan {
	out := Plan{ID: p.ID, Summary: p.Summary, Meta: p.Meta.Clone()}
	if p.Steps != nil {
		out.Steps = make([]Step, len(p.Steps))
		copy(out.Steps, p.Steps)
	}
	return out
}

// Clone returns a deep copy of the metadata.
func (m PlanMeta) Clone() PlanMeta {
	out := PlanMeta{
		EstimatedCost:    cloneFloat(m.EstimatedCost),
		EstimatedTimeSec: cloneFloat(m.EstimatedTimeSec),
		Stake:            cloneFloat(m.Stake),
		Uncertainty:      cloneFloat(m.Uncertainty),
		Tags:             cloneStrings(m.Tags),
	}
	if m.Reversibility != nil {
		out.Reversibility = Int(*m.Reversibility)
	}
	return out
}

// CloneSpecs deep-copies a list of constraint specs.
func CloneSpecs(specs []ConstraintSpec) []ConstraintSpec {
	if specs == nil {
		return nil
	}
	out := make([]ConstraintSpec, len(specs))
	for i, s := range specs {
		out[i] = s.Clone()
	}
	return out
}

// CloneWeights copies a weight map.
func CloneWeights(w map[string]float64) map[string]float64 {
	if w == nil {
		return nil
	}
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// CloneMap deep-copies a decoded JSON/YAML object.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a decoded JSON/YAML value. Scalars are returned
// as is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case map[any]any:
		out := make(map[any]any, len(t))
		for k, e := range t {
			out[k] = CloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		return cloneStrings(t)
	default:
		return v
	}
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Float(*v)
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
