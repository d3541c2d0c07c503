// Package api implements the feedwatch HTTP REST API.
//
// New(store, history, certs) returns an http.Handler that serves:
//
//	GET /api/v1/health       liveness plus feed state counts
//	GET /api/v1/feeds        all live feeds ([]FeedResponse), most listened first
//	GET /api/v1/feeds/{id}   single feed incl. hourly baselines; 404 if unknown
//	GET /api/v1/spikes       recorded spike history (?feed_id=&limit=)
//	GET /api/v1/certs        TLS cert status per HTTPS source
//	GET /api/v1/diagnostics  uptime, goroutines, go version, counters
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for non-GET methods
//   - Read live entries from the status store (stale entries excluded)
//
// JSON types are defined in types.go. No external HTTP framework is used.
// APIKeyMiddleware guards the subtree when a key is configured.
package api
