package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Context keys for common log fields.
type contextKey string

const (
	// DecisionIDKey is the context key for decision ids.
	DecisionIDKey contextKey = "decision_id"

	// DecisionContextKey is the context key for the decision context name
	// (e.g. "work").
	DecisionContextKey contextKey = "context"

	// PolicyVersionKey is the context key for the policy version.
	PolicyVersionKey contextKey = "policy_version"

	// CommandKey is the context key for the CLI command name.
	CommandKey contextKey = "command"
)

// WithDecisionID adds a decision ID to the context.
func WithDecisionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, DecisionIDKey, id)
}

// GetDecisionID retrieves the decision ID from the context.
func GetDecisionID(ctx context.Context) string {
	return stringValue(ctx, DecisionIDKey)
}

// WithDecisionContext adds the decision context name to the context.
func WithDecisionContext(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, DecisionContextKey, name)
}

// GetDecisionContext retrieves the decision context name from the context.
func GetDecisionContext(ctx context.Context) string {
	return stringValue(ctx, DecisionContextKey)
}

// WithPolicyVersion adds the policy version to the context.
func WithPolicyVersion(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, PolicyVersionKey, version)
}

// GetPolicyVersion retrieves the policy version from the context.
func GetPolicyVersion(ctx context.Context) string {
	return stringValue(ctx, PolicyVersionKey)
}

// WithCommand adds the CLI command name to the context.
func WithCommand(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, CommandKey, name)
}

// GetCommand retrieves the CLI command name from the context.
func GetCommand(ctx context.Context) string {
	return stringValue(ctx, CommandKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// contextAttrs extracts the known fields from ctx, followed by the trace
// and span ids of a valid OpenTelemetry span context.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr

	for _, key := range []contextKey{CommandKey, DecisionIDKey, DecisionContextKey, PolicyVersionKey} {
		if v := stringValue(ctx, key); v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	return attrs
}
