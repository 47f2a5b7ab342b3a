// Package engine decides which candidate plan an agent should act on.
//
// A decision runs in four stages:
//
//  1. Compile - derive the effective policy for the context and batch
//  2. Filter  - evaluate every effective constraint against every plan
//  3. Score   - weight the scorer outputs of the plans that passed
//  4. Gate    - pick an outcome from the survivors and batch uncertainty
//
// # Outcomes
//
//	no survivors                          → NO_VALID_PLAN
//	max uncertainty > threshold           → ASK_USER
//	otherwise                             → EXECUTE (highest utility wins)
//
// Every decision produces a DecisionTrace that records the effective
// policy snapshot, every candidate's evaluation, the outcome and a
// rationale. Traces are plain values and can be persisted as JSON.
//
// # Basic Usage
//
//	eng := engine.New(
//	    constraints.NewDefaultRegistry().Freeze(),
//	    scoring.NewDefaultRegistry().Freeze(),
//	    engine.WithLogger(logger),
//	)
//
//	decision := eng.Decide(pol, "finance", plans)
//	switch decision.Trace.Outcome {
//	case engine.OutcomeExecute:
//	    run(decision.Chosen)
//	case engine.OutcomeAskUser:
//	    ask(decision.Trace.Candidates)
//	}
//
// # Determinism
//
// Given the same clock and identifier generator, Decide is a pure function
// of its inputs. Ties in utility keep input order.
package engine
