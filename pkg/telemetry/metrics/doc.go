// Package metrics provides Prometheus metrics for the civility kernel.
//
// # Metrics Categories
//
//   - Decision metrics: decisions by context and outcome, decision
//     duration, candidate and survivor counts
//   - Policy metrics: lint issues, watcher reloads, policy load time
//   - Evidence metrics: store writes, retention deletions, record count
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordDecision(trace.Context, trace.Outcome, elapsed, len(trace.Candidates), survivors)
//	http.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Cardinality
//
// Decision contexts are free-form strings, so at most DefaultMaxCardinality
// distinct values are tracked; later ones are reported as "other".
package metrics
