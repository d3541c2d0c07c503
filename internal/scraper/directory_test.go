package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/feedwatch/feedwatch/internal/config"
)

const directoryListing = `[
  {"id": 101, "name": "Metro Police Dispatch", "listeners": 420},
  {"id": 202, "name": "County Fire and EMS", "listeners": 35, "alert": "Multi-alarm fire"},
  {"id": 303, "name": "Regional Air Traffic", "listeners": 12}
]`

func TestDirectoryScraper_Scrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(directoryListing))
	}))
	defer srv.Close()

	s := &directoryScraper{
		src:    config.Source{Name: "dir-test", Type: "directory", URL: srv.URL},
		client: srv.Client(),
	}

	feeds, err := s.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if len(feeds) != 3 {
		t.Fatalf("got %d feeds, want 3", len(feeds))
	}

	if feeds[0].ID != 101 || feeds[0].Listeners != 420 {
		t.Errorf("feed 0 = %+v, want id 101 with 420 listeners", feeds[0])
	}
	if feeds[1].Alert != "Multi-alarm fire" {
		t.Errorf("feed 1 alert = %q, want flagged alert text", feeds[1].Alert)
	}
	if feeds[2].Name != "Regional Air Traffic" {
		t.Errorf("feed 2 name = %q", feeds[2].Name)
	}
}

func TestDirectoryScraper_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := &directoryScraper{
		src:    config.Source{Name: "dir-down", URL: srv.URL},
		client: srv.Client(),
	}

	if _, err := s.Scrape(context.Background()); err == nil {
		t.Fatal("Scrape() = nil error, want failure on 503")
	}
}

func TestDirectoryScraper_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not": "a list"`))
	}))
	defer srv.Close()

	s := &directoryScraper{
		src:    config.Source{Name: "dir-bad", URL: srv.URL},
		client: srv.Client(),
	}

	if _, err := s.Scrape(context.Background()); err == nil {
		t.Fatal("Scrape() = nil error, want decode failure")
	}
}

func TestDirectoryScraper_ConnectFailure(t *testing.T) {
	s := &directoryScraper{
		src:    config.Source{Name: "dir-unreachable", URL: "http://127.0.0.1:1"},
		client: &http.Client{},
	}

	if _, err := s.Scrape(context.Background()); err == nil {
		t.Fatal("Scrape() = nil error, want connection failure")
	}
}

// --- Auth header injection ---

func TestNew_APIKeyAuthHeader(t *testing.T) {
	t.Setenv("DIR_KEY", "k-secret")

	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	s, err := New(config.Source{
		Name: "dir-auth",
		Type: "directory",
		URL:  srv.URL,
		Auth: config.AuthConfig{Mode: "apikey", Header: "X-API-Key", KeyEnv: "DIR_KEY"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := s.Scrape(context.Background()); err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if gotKey != "k-secret" {
		t.Errorf("X-API-Key header = %q, want %q", gotKey, "k-secret")
	}
}

func TestNew_BearerAuthHeader(t *testing.T) {
	t.Setenv("DIR_TOKEN", "tok-1")

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	s, err := New(config.Source{
		Name: "dir-bearer",
		Type: "directory",
		URL:  srv.URL,
		Auth: config.AuthConfig{Mode: "bearer", TokenEnv: "DIR_TOKEN"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := s.Scrape(context.Background()); err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization header = %q, want %q", gotAuth, "Bearer tok-1")
	}
}

func TestNew_UnsupportedType(t *testing.T) {
	if _, err := New(config.Source{Name: "x", Type: "gopher", URL: "http://example"}); err == nil {
		t.Fatal("New() = nil error, want unsupported type failure")
	}
}
