// Package query validates evidence queries and fills in their defaults
// before they reach a storage backend.
//
//	q := &evidence.Query{Outcome: engine.OutcomeAskUser}
//	if err := query.Validate(q); err != nil {
//	    return err
//	}
//	query.ApplyDefaults(q)
package query
