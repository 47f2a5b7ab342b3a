package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"civility-hq/kernel/pkg/telemetry/tracing"
)

// TracingMiddleware starts a server span for every request, continuing any
// trace carried in the traceparent header. A nil tracer uses the global
// provider.
func TracingMiddleware(tracer *tracing.Tracer) func(http.Handler) http.Handler {
	start := func(r *http.Request, name string) (*http.Request, trace.Span) {
		ctx := tracing.Propagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		opts := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindServer)}
		if tracer != nil {
			ctx, span := tracer.Start(ctx, name, opts...)
			return r.WithContext(ctx), span
		}
		ctx, span := otel.Tracer(tracing.InstrumentationName).Start(ctx, name, opts...)
		return r.WithContext(ctx), span
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, span := start(r, "HTTP "+r.Method+" "+r.URL.Path)
			defer span.End()

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			span.SetAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
				attribute.Int("http.response.status_code", rw.statusCode),
			)
			if id := GetRequestID(r.Context()); id != "" {
				span.SetAttributes(attribute.String("http.request.id", id))
			}
			if rw.statusCode >= 500 {
				span.SetStatus(codes.Error, http.StatusText(rw.statusCode))
			}
		})
	}
}
