// Package server provides the HTTP decision API served by civility watch.
//
// The server exposes the live policy held by the watcher to local agents,
// alongside the Prometheus and health endpoints.
//
// # Basic Usage
//
//	srv, err := server.New(cfg, server.Deps{
//	    Decisions: svc,
//	    Policy:    w,
//	    Lint:      lint.Deps{Registry: reg, Scorers: scorers},
//	    Storage:   store,
//	    Metrics:   collector,
//	    Health:    checker,
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	// Blocks until ctx is cancelled
//	return srv.Start(ctx)
//
// # Routes
//
//   - POST /v1/decide - Run a decision under the current policy
//   - GET /v1/policy - Canonical current policy, its hash and lint report
//   - POST /v1/lint - Lint a policy document (JSON, or YAML by Content-Type)
//   - GET /v1/traces - Query evidence records
//   - GET /v1/traces/{id} - One evidence record with its hash check
//   - GET /metrics - Prometheus metrics (when enabled)
//   - GET /health, GET /ready, GET /version - Probes (when enabled)
//
// Example decision request:
//
//	POST /v1/decide
//	{
//	    "context": "finance",
//	    "annotate": true,
//	    "record": true,
//	    "plans": [{"id": "A", "summary": "pay invoice", "steps": [], "meta": {"estimatedCost": 40}}]
//	}
//
// Trace queries accept id, decision_id, context, outcome, chosen_plan_id,
// policy_version, start_time and end_time (RFC 3339), limit, offset,
// sort_by and sort_order.
//
// # Graceful Shutdown
//
// Cancelling the context passed to Start stops accepting connections and
// waits for in-flight requests up to watch.shutdown_timeout.
//
// # Middleware Chain
//
// Requests pass through (innermost to outermost) MaxBytes, Tracing,
// RequestID, Logging and Recovery. See package middleware.
package server
