package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"civility-hq/kernel/pkg/policy"
	"civility-hq/kernel/pkg/policy/compile"
	"civility-hq/kernel/pkg/policy/constraints"
	"civility-hq/kernel/pkg/policy/scoring"
)

// TimestampLayout is the trace timestamp format: RFC 3339 in UTC with
// millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Rationale texts.
const (
	rationaleNoValidPlan  = "All candidate plans violated hard constraints."
	rationaleNoCandidates = "No candidate plans were provided."
	guidanceNoValidPlan   = "Agent must ask user to relax constraints or propose new options."
	rationaleAskUser      = "Estimated uncertainty (%.2f) exceeds threshold (%.2f)."
	guidanceAskUser       = "Agent should present top surviving options and ask for preference/confirmation."
	rationaleExecute      = "Selected highest-utility plan among constraint-passing candidates."
	warningMissingScorer  = "Weight '%s' had no scorer registered; treated as 0."
)

// Engine evaluates candidate plans against a policy. An Engine is safe for
// concurrent use once its registries are no longer modified.
type Engine struct {
	constraints *constraints.Registry
	scorers     *scoring.Registry
	clock       Clock
	ids         IDGenerator
	logger      *slog.Logger
}

// New creates an engine over the given registries.
func New(c *constraints.Registry, s *scoring.Registry, opts ...Option) *Engine {
	e := &Engine{
		constraints: c,
		scorers:     s,
		clock:       systemClock(),
		ids:         uuidGenerator(),
		logger:      slog.Default().With("component", "policy.engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decide chooses among plans under base for the named context. It never
// fails: unknown or invalid constraints become violations. Neither base
// nor plans is modified.
func (e *Engine) Decide(base *policy.Policy, contextName string, plans []policy.Plan) Decision {
	decisionID := e.ids.NewID()
	eff := compile.Effective(base, contextName, plans)

	evals := make([]PlanEval, len(plans))
	var survivors []int
	for i := range plans {
		evals[i] = e.evaluate(&plans[i], eff)
		if evals[i].PassesConstraints {
			survivors = append(survivors, i)
		}
	}

	maxUncertainty := compile.MaxUncertainty(plans)

	var (
		outcome   Outcome
		chosen    *policy.Plan
		rationale []string
	)
	switch {
	case len(survivors) == 0:
		outcome = OutcomeNoValidPlan
		if len(plans) == 0 {
			rationale = append(rationale, rationaleNoCandidates)
		} else {
			rationale = append(rationale, rationaleNoValidPlan)
		}
		rationale = append(rationale, guidanceNoValidPlan)

	case maxUncertainty > eff.UncertaintyThreshold:
		outcome = OutcomeAskUser
		rationale = append(rationale,
			fmt.Sprintf(rationaleAskUser, maxUncertainty, eff.UncertaintyThreshold),
			guidanceAskUser)

	default:
		outcome = OutcomeExecute
		sort.SliceStable(survivors, func(a, b int) bool {
			return evals[survivors[a]].Utility > evals[survivors[b]].Utility
		})
		best := plans[survivors[0]].Clone()
		chosen = &best
		rationale = append(rationale, rationaleExecute)
	}

	if len(survivors) > 0 {
		for _, k := range policy.SortedKeys(eff.Weights) {
			if !e.scorers.Has(k) {
				rationale = append(rationale, fmt.Sprintf(warningMissingScorer, k))
			}
		}
	}

	trace := DecisionTrace{
		DecisionID:      decisionID,
		Context:         contextName,
		EffectivePolicy: snapshot(eff),
		Candidates:      make([]Candidate, len(plans)),
		Outcome:         outcome,
		Rationale:       rationale,
		Timestamp:       e.clock.Now().UTC().Format(TimestampLayout),
	}
	for i, plan := range plans {
		trace.Candidates[i] = Candidate{
			Plan: PlanSummary{ID: plan.ID, Summary: plan.Summary, Meta: plan.Meta.Clone()},
			Eval: evals[i],
		}
	}
	if chosen != nil {
		trace.ChosenPlanID = chosen.ID
	}

	if e.logger.Enabled(context.Background(), slog.LevelDebug) {
		e.logger.Debug("decision made",
			"decision_id", decisionID,
			"context", contextName,
			"outcome", outcome,
			"candidates", len(plans),
			"survivors", len(survivors),
			"max_uncertainty", maxUncertainty,
			"rules_applied", compile.MatchingRules(base, contextName, plans),
		)
	}

	return Decision{Chosen: chosen, Trace: trace}
}

// evaluate filters and scores one plan under the effective policy.
func (e *Engine) evaluate(plan *policy.Plan, eff *policy.Policy) PlanEval {
	eval := PlanEval{
		PlanID:              plan.ID,
		ViolatedConstraints: []Violation{},
		Scores:              map[string]float64{},
		Utility:             math.Inf(-1),
	}

	for _, res := range e.constraints.Evaluate(eff.Constraints, plan, eff) {
		if !res.OK {
			eval.ViolatedConstraints = append(eval.ViolatedConstraints, Violation{
				ID:     res.ID,
				Params: policy.CloneMap(res.Params),
				Reason: res.Reason,
			})
		}
	}

	eval.PassesConstraints = len(eval.ViolatedConstraints) == 0
	if !eval.PassesConstraints {
		return eval
	}

	eval.Scores = e.scorers.Score(plan, eff)
	utility := 0.0
	for _, k := range policy.SortedKeys(eff.Weights) {
		utility += eff.Weights[k] * eval.Scores[k]
	}
	eval.Utility = utility
	return eval
}

func snapshot(eff *policy.Policy) EffectivePolicy {
	specs := policy.CloneSpecs(eff.Constraints)
	if specs == nil {
		specs = []policy.ConstraintSpec{}
	}
	return EffectivePolicy{
		Weights:              policy.CloneWeights(eff.Weights),
		Constraints:          specs,
		UncertaintyThreshold: eff.UncertaintyThreshold,
		Calibration:          eff.Calibration,
	}
}
