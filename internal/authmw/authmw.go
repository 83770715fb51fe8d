// Package authmw provides HTTP middleware for bearer token authentication.
package authmw

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerToken returns middleware that validates the Authorization header
// carries a bearer token matching the expected value. The scheme comparison
// is case-insensitive per RFC 7235; the token comparison is constant-time to
// prevent timing side channels. Rejections carry a WWW-Authenticate
// challenge and the API's JSON error shape.
func BearerToken(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, got, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				unauthorized(w, "missing or malformed authorization header")
				return
			}

			if subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
				unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="fleetwatch"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error_code":"unauthorized","error":"` + msg + `"}`))
}
