// Package status holds the latest per-feed detection snapshots in memory
// with TTL-based eviction for feeds that stop appearing in scrapes.
package status
