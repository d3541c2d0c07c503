// Package history records spike detections in SQLite with retention-based
// pruning, backing the /api/v1/spikes endpoint.
package history
