// Package tracing provides OpenTelemetry tracing for CLI commands and the
// watch daemon.
//
// Spans are exported over OTLP/gRPC when telemetry.tracing.enabled is set;
// otherwise a noop tracer is used. A CLI invocation joins the caller's
// trace when TRACEPARENT (and optionally TRACESTATE) is set in the
// environment:
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(context.Background())
//
//	ctx = tracing.ExtractFromEnv(ctx)
//	ctx, span := tracer.Start(ctx, "civility.decide")
//	defer span.End()
//	tracing.SetDecisionAttributes(span, decision.Trace)
//
// Samplers are "always", "never", and "ratio", each wrapped in ParentBased.
package tracing
