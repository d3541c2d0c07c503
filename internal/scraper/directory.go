package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/feedwatch/feedwatch/internal/config"
)

// directoryFeed is the JSON shape of one entry in a directory listing.
type directoryFeed struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Listeners int    `json:"listeners"`
	Alert     string `json:"alert"`
}

type directoryScraper struct {
	src    config.Source
	client *http.Client
}

func (s *directoryScraper) Name() string { return s.src.Name }

// Scrape fetches the directory's JSON listing and returns one Feed per entry.
func (s *directoryScraper) Scrape(ctx context.Context) ([]Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("directory %q: build request: %w", s.src.Name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory %q: %w", s.src.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory %q: unexpected status %d", s.src.Name, resp.StatusCode)
	}

	var listing []directoryFeed
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("directory %q: decode JSON: %w", s.src.Name, err)
	}

	feeds := make([]Feed, 0, len(listing))
	for _, f := range listing {
		feeds = append(feeds, Feed{
			ID:        f.ID,
			Name:      f.Name,
			Listeners: f.Listeners,
			Alert:     f.Alert,
		})
	}
	return feeds, nil
}
