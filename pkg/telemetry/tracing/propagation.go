package tracing

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Environment variables carrying W3C trace context into a CLI invocation.
// An agent that shells out to civility sets them to attach the decision
// spans to its own trace.
const (
	EnvTraceParent = "TRACEPARENT"
	EnvTraceState  = "TRACESTATE"
)

// Propagator returns the global text map propagator.
func Propagator() propagation.TextMapPropagator {
	return otel.GetTextMapPropagator()
}

// ExtractFromEnv returns ctx carrying the remote span context found in the
// environment, or ctx unchanged when none is set.
func ExtractFromEnv(ctx context.Context) context.Context {
	return ExtractFromLookup(ctx, os.Getenv)
}

// ExtractFromLookup is ExtractFromEnv with an explicit variable lookup.
func ExtractFromLookup(ctx context.Context, getenv func(string) string) context.Context {
	carrier := propagation.MapCarrier{}
	if v := getenv(EnvTraceParent); v != "" {
		carrier.Set("traceparent", v)
	}
	if v := getenv(EnvTraceState); v != "" {
		carrier.Set("tracestate", v)
	}
	if len(carrier) == 0 {
		return ctx
	}
	return Propagator().Extract(ctx, carrier)
}

// InjectToMap writes the trace context in ctx into carrier.
func InjectToMap(ctx context.Context, carrier map[string]string) {
	Propagator().Inject(ctx, propagation.MapCarrier(carrier))
}
