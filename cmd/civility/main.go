// Civility is the command-line front end of the civility kernel, a
// preference policy engine that picks among an agent's candidate plans.
//
// It lints, canonicalizes, explains and diffs policy documents, applies
// reviewed proposals, runs decisions, and keeps an evidence trail of
// recorded decision traces.
//
// Usage:
//
//	# Lint the configured policy (policy.yaml by default)
//	civility lint
//
//	# Lint strictly, treating warnings as errors
//	civility lint policy.yaml --strict
//
//	# Review what changed since the last commit
//	civility diff --rev HEAD --mode short
//
//	# Apply a reviewed proposal, backing up the current policy
//	civility propose proposed.json --write-prev policy.prev.json
//
//	# Decide among plans and record the trace
//	civility decide --plans plans.json --context finance --record
//
//	# Serve decisions while hot-reloading the policy
//	civility watch
package main

func main() {
	Execute()
}
