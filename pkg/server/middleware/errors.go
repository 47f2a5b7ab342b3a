package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Type categorizes the error.
	Type string `json:"type"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// RequestID correlates the reply with server logs.
	RequestID string `json:"request_id,omitempty"`
}

// Error types.
const (
	ErrorTypeInvalidRequest     = "invalid_request_error"
	ErrorTypeNotFound           = "not_found"
	ErrorTypeMethodNotAllowed   = "method_not_allowed"
	ErrorTypeRequestTooLarge    = "request_too_large"
	ErrorTypeServerError        = "server_error"
	ErrorTypeServiceUnavailable = "service_unavailable"
)

// WriteError writes a JSON error reply.
func WriteError(w http.ResponseWriter, r *http.Request, status int, errType, message string) {
	resp := ErrorResponse{Error: ErrorDetail{
		Type:      errType,
		Message:   message,
		RequestID: GetRequestID(r.Context()),
	}}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
