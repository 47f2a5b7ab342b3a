package middleware

import (
	"net/http"
)

// MaxBytesMiddleware caps request bodies at limit bytes. Handlers see a
// *http.MaxBytesError from Read once the cap is exceeded. A non-positive
// limit disables the cap.
func MaxBytesMiddleware(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				WriteError(w, r, http.StatusRequestEntityTooLarge, ErrorTypeRequestTooLarge,
					"request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
