package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status          string `json:"status"`
	FeedCount       int    `json:"feed_count"`
	SpikingCount    int    `json:"spiking_count"`
	CorrectingCount int    `json:"correcting_count"`
}

// FeedResponse is one feed entry in GET /api/v1/feeds or
// GET /api/v1/feeds/{id}.
type FeedResponse struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Listeners int     `json:"listeners"`
	Average   float64 `json:"average"`
	Delta     float64 `json:"delta"`
	Spiked    bool    `json:"spiked"`
	Streak    uint8   `json:"streak"`

	// Unskewed is the corrective baseline, present only while a correction
	// is in progress.
	Unskewed *float64 `json:"unskewed,omitempty"`

	Alert string `json:"alert,omitempty"`

	// Hourly is the per-hour baseline table. Populated only in the single
	// feed view to keep the list payload small.
	Hourly []float64 `json:"hourly,omitempty"`

	Diagnostics []DiagnosticHint `json:"diagnostics"`
	UpdatedAt   string           `json:"updated_at"` // RFC3339
}

// SnapshotResponse is the full live view: the payload for the WebSocket
// stream, shared with the REST layer.
type SnapshotResponse struct {
	Feeds       []FeedResponse `json:"feeds"`
	GeneratedAt string         `json:"generated_at"` // RFC3339
}

// DiagnosticsResponse is the payload for GET /api/v1/diagnostics.
type DiagnosticsResponse struct {
	Uptime         string `json:"uptime"`
	Goroutines     int    `json:"goroutines"`
	GoVersion      string `json:"go_version"`
	FeedsTracked   int    `json:"feeds_tracked"`
	SpikesRecorded int    `json:"spikes_recorded"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
