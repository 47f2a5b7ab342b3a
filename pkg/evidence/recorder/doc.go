// Package recorder turns decision traces into evidence records and writes
// them to a storage backend.
//
// # Recording Flow
//
//  1. The engine decides and returns a DecisionTrace
//  2. NewRecord summarizes the trace and hashes its canonical JSON
//  3. Record enqueues the record for the background writer
//  4. The writer stores it with a per-write timeout
//
// # Basic Usage
//
//	rec := recorder.NewRecorder(storage, recorder.DefaultConfig(), logger)
//	defer rec.Close()
//
//	record, err := rec.Record(ctx, decision.Trace, recorder.PolicyInfo{
//	    Version: pol.Version,
//	    Hash:    recorder.HashPolicy(pol),
//	    Source:  "policy.yaml",
//	})
//
// # Integrity
//
// TraceHash is the SHA-256 of the trace's canonical JSON (sorted keys,
// shortest numbers). Verify recomputes it from a stored record, which
// detects edits to the stored trace.
//
// # Shutdown
//
// Close stops accepting records and drains the queue before returning, so
// every record accepted by Record reaches storage unless the write itself
// fails.
package recorder
