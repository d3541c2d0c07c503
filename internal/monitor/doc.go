// Package monitor orchestrates the polling cycle: it scrapes every
// configured source, advances each feed's spike state, fans detections out
// to the webhook targets, records spikes in history and refreshes the
// in-memory status store that the API and websocket hub serve from.
package monitor
