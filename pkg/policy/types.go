package policy

// Well-known plan tags. Tags are free-form strings; these are the ones the
// default constraints and the tag extractor understand.
const (
	TagSpendMoney      = "spend_money"
	TagIrreversible    = "irreversible"
	TagContactExternal = "contact_external"
	TagDeleteFile      = "delete_file"
)

// Policy is a preference policy: hard constraints, soft weights, context
// rules, and the uncertainty gate.
type Policy struct {
	// Version is a free-form version label.
	Version string `json:"version" yaml:"version"`

	// Weights maps a scorer key to its relative importance.
	Weights map[string]float64 `json:"weights" yaml:"weights"`

	// Constraints are evaluated in order against every candidate plan.
	Constraints []ConstraintSpec `json:"constraints" yaml:"constraints"`

	// ContextRules adjust the policy for a named context.
	ContextRules []ContextRule `json:"contextRules" yaml:"contextRules"`

	// UncertaintyThreshold is the maximum batch uncertainty at which the
	// agent may still execute. Expected within [0,1].
	UncertaintyThreshold float64 `json:"uncertaintyThreshold" yaml:"uncertaintyThreshold"`

	// Memory is opaque user state carried along with the policy.
	Memory map[string]any `json:"memory,omitempty" yaml:"memory,omitempty"`

	// Calibration tunes scorer behavior.
	Calibration Calibration `json:"calibration" yaml:"calibration"`
}

// Calibration holds the tuning knobs consulted by scorers and feedback.
type Calibration struct {
	RiskTolerance float64 `json:"riskTolerance" yaml:"riskTolerance"`
	Verbosity     float64 `json:"verbosity" yaml:"verbosity"`
	Initiative    float64 `json:"initiative" yaml:"initiative"`
}

// CalibrationPatch overlays individual calibration fields. Nil fields are
// left untouched.
type CalibrationPatch struct {
	RiskTolerance *float64 `json:"riskTolerance,omitempty" yaml:"riskTolerance,omitempty"`
	Verbosity     *float64 `json:"verbosity,omitempty" yaml:"verbosity,omitempty"`
	Initiative    *float64 `json:"initiative,omitempty" yaml:"initiative,omitempty"`
}

// Apply overlays the patch onto c and returns the result.
func (p *CalibrationPatch) Apply(c Calibration) Calibration {
	if p == nil {
		return c
	}
	if p.RiskTolerance != nil {
		c.RiskTolerance = *p.RiskTolerance
	}
	if p.Verbosity != nil {
		c.Verbosity = *p.Verbosity
	}
	if p.Initiative != nil {
		c.Initiative = *p.Initiative
	}
	return c
}

// IsEmpty reports whether the patch changes nothing.
func (p *CalibrationPatch) IsEmpty() bool {
	return p == nil || (p.RiskTolerance == nil && p.Verbosity == nil && p.Initiative == nil)
}

// ContextRule adjusts the policy when the decision context matches Context
// and the optional When condition holds over the candidate batch.
type ContextRule struct {
	Context string     `json:"context" yaml:"context"`
	When    *Condition `json:"when,omitempty" yaml:"when,omitempty"`
	Adjust  Adjustment `json:"adjust" yaml:"adjust"`
}

// Condition is evaluated over the whole candidate batch, not per plan.
// Every present field must hold.
type Condition struct {
	// MinStake holds when the maximum plan stake is at least this value.
	MinStake *float64 `json:"minStake,omitempty" yaml:"minStake,omitempty"`

	// MaxUncertainty holds when the maximum plan uncertainty is at most
	// this value.
	MaxUncertainty *float64 `json:"maxUncertainty,omitempty" yaml:"maxUncertainty,omitempty"`

	// TagsAny holds when any plan carries any of these tags. A present but
	// empty list never holds.
	TagsAny []string `json:"tagsAny,omitempty" yaml:"tagsAny,omitempty"`
}

// Adjustment is the patch a context rule applies.
type Adjustment struct {
	Weights              map[string]float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
	ConstraintsAdd       []ConstraintSpec   `json:"constraintsAdd,omitempty" yaml:"constraintsAdd,omitempty"`
	ConstraintsRemove    []string           `json:"constraintsRemove,omitempty" yaml:"constraintsRemove,omitempty"`
	UncertaintyThreshold *float64           `json:"uncertaintyThreshold,omitempty" yaml:"uncertaintyThreshold,omitempty"`
	Calibration          *CalibrationPatch  `json:"calibration,omitempty" yaml:"calibration,omitempty"`
}

// Plan is a candidate course of action proposed by the agent.
type Plan struct {
	ID      string   `json:"id" yaml:"id"`
	Summary string   `json:"summary" yaml:"summary"`
	Steps   []Step   `json:"steps" yaml:"steps"`
	Meta    PlanMeta `json:"meta" yaml:"meta"`
}

// Step is a single step of a plan.
type Step struct {
	Kind   string `json:"kind" yaml:"kind"`
	Detail string `json:"detail" yaml:"detail"`
}

// PlanMeta carries the estimates constraints and scorers look at. Absent
// numeric fields are nil; consumers apply their own defaults.
type PlanMeta struct {
	EstimatedCost    *float64 `json:"estimatedCost,omitempty" yaml:"estimatedCost,omitempty"`
	EstimatedTimeSec *float64 `json:"estimatedTimeSec,omitempty" yaml:"estimatedTimeSec,omitempty"`

	// Reversibility is 0 for irreversible plans and 1 for reversible ones.
	Reversibility *int `json:"reversibility,omitempty" yaml:"reversibility,omitempty"`

	Stake       *float64 `json:"stake,omitempty" yaml:"stake,omitempty"`
	Uncertainty *float64 `json:"uncertainty,omitempty" yaml:"uncertainty,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// HasTag reports whether the plan carries tag.
func (m PlanMeta) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Irreversible reports whether reversibility is explicitly 0.
func (m PlanMeta) Irreversible() bool {
	return m.Reversibility != nil && *m.Reversibility == 0
}

// StakeOr returns the stake, or def when absent.
func (m PlanMeta) StakeOr(def float64) float64 {
	return valueOr(m.Stake, def)
}

// UncertaintyOr returns the uncertainty, or def when absent.
func (m PlanMeta) UncertaintyOr(def float64) float64 {
	return valueOr(m.Uncertainty, def)
}

// CostOr returns the estimated cost, or def when absent.
func (m PlanMeta) CostOr(def float64) float64 {
	return valueOr(m.EstimatedCost, def)
}

// TimeOr returns the estimated time in seconds, or def when absent.
func (m PlanMeta) TimeOr(def float64) float64 {
	return valueOr(m.EstimatedTimeSec, def)
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// ConstraintResult is the outcome of evaluating one constraint spec against
// one plan.
type ConstraintResult struct {
	OK     bool           `json:"ok" yaml:"ok"`
	ID     string         `json:"id" yaml:"id"`
	Reason string         `json:"reason,omitempty" yaml:"reason,omitempty"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Pass returns a passing result for spec.
func Pass(spec ConstraintSpec) ConstraintResult {
	return ConstraintResult{OK: true, ID: spec.ID, Params: spec.Params}
}

// Fail returns a violation of spec with the given reason.
func Fail(spec ConstraintSpec, reason string) ConstraintResult {
	return ConstraintResult{OK: false, ID: spec.ID, Reason: reason, Params: spec.Params}
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
