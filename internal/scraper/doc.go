// Package scraper fetches feed listings from configured sources. Each
// scraper polls one endpoint and returns []Feed entries of
// (id, name, listeners, optional alert text) for the monitor to run through
// spike detection.
//
// Implemented sources: JSON directory listings (directory.go) and Prometheus
// text expositions (prometheus.go). Factory: New(config.Source) returns the
// correct Scraper.
//
// Authentication (mTLS, API key, bearer token, basic) is handled by the
// shared authRoundTripper in base.go; individual scrapers receive a
// pre-configured *http.Client from New().
package scraper
