// Package policy defines the preference policy data model shared by every
// part of the kernel.
//
// A Policy declares what an agent may do and how it should prefer one
// candidate Plan over another:
//
//   - Constraints are hard rules. A plan violating any of them is discarded.
//   - Weights score the surviving plans. Each weight key names a scorer.
//   - ContextRules adjust the policy for a named context when their
//     condition holds over the candidate batch.
//   - UncertaintyThreshold gates execution: when the batch is more uncertain
//     than the threshold, the agent must ask instead of act.
//
// The types in this package carry no behavior beyond structural cloning and
// identity. Evaluation lives in the compile, engine, canonical, diff and lint
// subpackages.
//
// # Documents
//
// Policies and plans are read from JSON or YAML documents with camelCase
// field names. A constraint may be written either as a bare identifier or as
// an object with parameters:
//
//	constraints:
//	  - no_irreversible_changes
//	  - id: max_spend_without_confirm
//	    params: {amount: 20, currency: USD}
//
// A ConstraintSpec without parameters always marshals back to the bare form.
package policy
