package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/feedwatch/feedwatch/internal/config"
)

// feedMetrics is a realistic exposition from a feed exporter.
const feedMetrics = `
# HELP feed_listeners Current listener count per feed.
# TYPE feed_listeners gauge
feed_listeners{feed_id="101",feed_name="Metro Police Dispatch"} 420
feed_listeners{feed_id="202",feed_name="County Fire and EMS"} 35
feed_listeners{feed_id="303",feed_name="Regional Air Traffic"} 12

# HELP feed_alert Directory-flagged alerts, message in the label.
# TYPE feed_alert gauge
feed_alert{feed_id="202",message="Multi-alarm fire"} 1
`

func newPromScraper(t *testing.T, body string, src config.Source) (*promScraper, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(body))
	}))
	src.URL = srv.URL
	return &promScraper{src: src, client: srv.Client()}, srv.Close
}

func TestPromScraper_Scrape(t *testing.T) {
	s, done := newPromScraper(t, feedMetrics, config.Source{Name: "prom-test", Type: "prometheus"})
	defer done()

	feeds, err := s.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(feeds) != 3 {
		t.Fatalf("got %d feeds, want 3", len(feeds))
	}

	byID := make(map[int]Feed, len(feeds))
	for _, f := range feeds {
		byID[f.ID] = f
	}

	if f := byID[101]; f.Listeners != 420 || f.Name != "Metro Police Dispatch" {
		t.Errorf("feed 101 = %+v", f)
	}
	if f := byID[202]; f.Alert != "Multi-alarm fire" {
		t.Errorf("feed 202 alert = %q, want joined alert text", f.Alert)
	}
	if f := byID[303]; f.Alert != "" {
		t.Errorf("feed 303 alert = %q, want empty", f.Alert)
	}
}

func TestPromScraper_FamilyOverrides(t *testing.T) {
	body := `
station_listeners{feed_id="7",feed_name="Harbor Control"} 88
station_alert{feed_id="7",message="Vessel aground"} 1
`
	s, done := newPromScraper(t, body, config.Source{
		Name:        "prom-custom",
		Metric:      "station_listeners",
		AlertMetric: "station_alert",
	})
	defer done()

	feeds, err := s.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(feeds) != 1 {
		t.Fatalf("got %d feeds, want 1", len(feeds))
	}
	if feeds[0].Listeners != 88 || feeds[0].Alert != "Vessel aground" {
		t.Errorf("feed = %+v", feeds[0])
	}
}

func TestPromScraper_MissingFamily(t *testing.T) {
	s, done := newPromScraper(t, "unrelated_metric 1\n", config.Source{Name: "prom-empty"})
	defer done()

	if _, err := s.Scrape(context.Background()); err == nil {
		t.Fatal("Scrape() = nil error, want missing-family failure")
	}
}

func TestPromScraper_SkipsSamplesWithoutFeedID(t *testing.T) {
	body := `
feed_listeners{feed_name="No ID"} 10
feed_listeners{feed_id="5",feed_name="Valid"} 20
feed_listeners{feed_id="oops",feed_name="Bad ID"} 30
`
	s, done := newPromScraper(t, body, config.Source{Name: "prom-partial"})
	defer done()

	feeds, err := s.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(feeds) != 1 || feeds[0].ID != 5 {
		t.Errorf("feeds = %+v, want only id 5", feeds)
	}
}

func TestPromScraper_ConnectFailure(t *testing.T) {
	s := &promScraper{
		src:    config.Source{Name: "prom-down", URL: "http://127.0.0.1:1"},
		client: &http.Client{},
	}
	if _, err := s.Scrape(context.Background()); err == nil {
		t.Fatal("Scrape() = nil error, want connection failure")
	}
}
