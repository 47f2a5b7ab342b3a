// Package evidence persists decision traces as tamper-evident audit records.
//
// # Architecture
//
// The evidence system consists of four layers:
//
//  1. Recorder - builds a Record from a decision and writes it asynchronously
//  2. Storage - persists records (SQLite or in-memory)
//  3. Query - filters, sorts and pages stored records
//  4. Retention - prunes old records on a cron schedule
//
// # Records
//
// Each record captures the decision id, context, outcome and chosen plan,
// the version and hash of the policy that produced it, and the full
// DecisionTrace. TraceHash is the SHA-256 of the trace's canonical JSON
// (RFC 8785), so a stored trace can be verified after the fact.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
//	    Path:    "data/traces.db",
//	    WALMode: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	rec := recorder.NewRecorder(store, recorder.DefaultConfig(), logger)
//	defer rec.Close()
//
//	decision := eng.Decide(policy, "work", plans)
//	rec.Record(ctx, decision.Trace, recorder.PolicyInfo{Version: policy.Version})
package evidence
