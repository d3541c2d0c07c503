package api

import (
	"crypto/subtle"
	"net/http"
)

const keyHeader = "X-API-Key"

// APIKeyMiddleware enforces API key authentication on the API subtree.
//
// Behaviour:
//   - If key is empty, all requests are allowed (auth disabled).
//   - /api/v1/health is exempt so liveness probes work without credentials.
//   - Every other request must carry the right key in X-API-Key; the compare
//     is constant-time.
func APIKeyMiddleware(key string, next http.Handler) http.Handler {
	if key == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/health" {
			next.ServeHTTP(w, r)
			return
		}

		got := r.Header.Get(keyHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			jsonErr(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
