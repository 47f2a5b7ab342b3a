package engine

import (
	"encoding/json"
	"math"
	"sort"

	"civility-hq/kernel/pkg/policy"
)

// Outcome is the final decision for a candidate batch.
type Outcome string

const (
	// OutcomeExecute means the chosen plan may be executed.
	OutcomeExecute Outcome = "EXECUTE"

	// OutcomeAskUser means the batch is too uncertain; the agent must
	// present the surviving options and ask.
	OutcomeAskUser Outcome = "ASK_USER"

	// OutcomeNoValidPlan means every candidate violated a hard constraint.
	OutcomeNoValidPlan Outcome = "NO_VALID_PLAN"
)

// Violation is a failed constraint recorded against a plan.
type Violation struct {
	ID     string         `json:"id"`
	Params map[string]any `json:"params,omitempty"`
	Reason string         `json:"reason"`
}

// PlanEval is the evaluation of one candidate plan.
type PlanEval struct {
	PlanID              string             `json:"planId"`
	PassesConstraints   bool               `json:"passesConstraints"`
	ViolatedConstraints []Violation        `json:"violatedConstraints"`
	Scores              map[string]float64 `json:"scores"`

	// Utility is the weighted score sum, or -Inf for plans that failed a
	// constraint. -Inf is encoded as JSON null.
	Utility float64 `json:"utility"`
}

type planEvalJSON struct {
	PlanID              string             `json:"planId"`
	PassesConstraints   bool               `json:"passesConstraints"`
	ViolatedConstraints []Violation        `json:"violatedConstraints"`
	Scores              map[string]float64 `json:"scores"`
	Utility             *float64           `json:"utility"`
}

// MarshalJSON encodes a non-finite utility as null.
func (e PlanEval) MarshalJSON() ([]byte, error) {
	out := planEvalJSON{
		PlanID:              e.PlanID,
		PassesConstraints:   e.PassesConstraints,
		ViolatedConstraints: e.ViolatedConstraints,
		Scores:              e.Scores,
	}
	if out.ViolatedConstraints == nil {
		out.ViolatedConstraints = []Violation{}
	}
	if out.Scores == nil {
		out.Scores = map[string]float64{}
	}
	if !math.IsInf(e.Utility, 0) && !math.IsNaN(e.Utility) {
		u := e.Utility
		out.Utility = &u
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a null utility as -Inf.
func (e *PlanEval) UnmarshalJSON(data []byte) error {
	var in planEvalJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = PlanEval{
		PlanID:              in.PlanID,
		PassesConstraints:   in.PassesConstraints,
		ViolatedConstraints: in.ViolatedConstraints,
		Scores:              in.Scores,
		Utility:             math.Inf(-1),
	}
	if in.Utility != nil {
		e.Utility = *in.Utility
	}
	return nil
}

// PlanSummary is the part of a plan recorded in a trace.
type PlanSummary struct {
	ID      string          `json:"id"`
	Summary string          `json:"summary"`
	Meta    policy.PlanMeta `json:"meta"`
}

// Candidate pairs a plan summary with its evaluation.
type Candidate struct {
	Plan PlanSummary `json:"plan"`
	Eval PlanEval    `json:"eval"`
}

// EffectivePolicy is the snapshot of the compiled policy a decision used.
type EffectivePolicy struct {
	Weights              map[string]float64      `json:"weights"`
	Constraints          []policy.ConstraintSpec `json:"constraints"`
	UncertaintyThreshold float64                 `json:"uncertaintyThreshold"`
	Calibration          policy.Calibration      `json:"calibration"`
}

// DecisionTrace is the audit record of one decision. Candidates keep the
// input order of the plans.
type DecisionTrace struct {
	DecisionID      string          `json:"decisionId"`
	Context         string          `json:"context"`
	EffectivePolicy EffectivePolicy `json:"effectivePolicy"`
	Candidates      []Candidate     `json:"candidates"`
	ChosenPlanID    string          `json:"chosenPlanId,omitempty"`
	Outcome         Outcome         `json:"outcome"`
	Rationale       []string        `json:"rationale"`
	Timestamp       string          `json:"timestamp"`
}

// Decision is the result of Decide.
type Decision struct {
	// Chosen is a copy of the plan to execute. Nil unless the outcome is
	// OutcomeExecute.
	Chosen *policy.Plan

	Trace DecisionTrace
}

// Survivors returns the candidates that passed every constraint, in trace
// order.
func (t DecisionTrace) Survivors() []Candidate {
	var out []Candidate
	for _, c := range t.Candidates {
		if c.Eval.PassesConstraints {
			out = append(out, c)
		}
	}
	return out
}

// Ranked returns the surviving candidates ordered by utility, highest
// first. Ties keep input order.
func (t DecisionTrace) Ranked() []Candidate {
	out := t.Survivors()
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Eval.Utility > out[b].Eval.Utility
	})
	return out
}
