package api

import (
	"crypto/subtle"
	"net/http"
)

// MetricsKeyAuth guards read access to diagnostics with the x-metrics-key
// header. An empty key disables the guarded routes entirely.
func MetricsKeyAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				httpError(w, http.StatusNotImplemented, "configuration_error", "metrics dashboard disabled")
				return
			}
			provided := r.Header.Get("x-metrics-key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing metrics key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
