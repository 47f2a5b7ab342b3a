// Package telemetry groups the observability packages of the kernel.
//
//   - logging: slog construction and context fields
//   - metrics: Prometheus collector and /metrics handler
//   - tracing: OpenTelemetry tracer with OTLP/gRPC export
//   - health: liveness and readiness probes for the watch daemon
//
// Each subpackage is configured from the matching section of
// config.TelemetryConfig.
package telemetry
