// Package middleware provides HTTP middleware for the decision API.
//
// # Middleware Chain
//
//	handler = Recovery(Logging(RequestID(Tracing(MaxBytes(handler)))))
//
// Order (innermost to outermost):
//  1. MaxBytes: Cap request body size
//  2. Tracing: Start a server span from propagated trace headers
//  3. RequestID: Generate and propagate request ID
//  4. Logging: Log request/response details
//  5. Recovery: Recover from panics
//
// All error responses share one JSON shape:
//
//	{"error": {"type": "invalid_request_error", "message": "..."}}
package middleware
