package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	dto "github.com/prometheus/client_model/go"

	"github.com/feedwatch/feedwatch/internal/config"
)

// Default metric family names read from a prometheus source. Both can be
// overridden per source via the metric / alert_metric config fields.
const (
	// Gauge family holding the current listener count per feed.
	defaultListenerFamily = "feed_listeners"

	// Optional info family whose "message" label carries alert text.
	defaultAlertFamily = "feed_alert"
)

// Label names carrying feed identity on exported samples.
const (
	labelFeedID   = "feed_id"
	labelFeedName = "feed_name"
	labelMessage  = "message"
)

type promScraper struct {
	src    config.Source
	client *http.Client
}

func (s *promScraper) Name() string { return s.src.Name }

// Scrape fetches the source's text exposition and returns one Feed per sample
// of the listener family. Samples without a numeric feed_id label are skipped.
// Alert text is joined in from the companion alert family by feed id.
func (s *promScraper) Scrape(ctx context.Context) ([]Feed, error) {
	mfs, err := fetchMetrics(ctx, s.client, s.src.URL)
	if err != nil {
		return nil, fmt.Errorf("prometheus %q: %w", s.src.Name, err)
	}

	listenerFamily := s.src.Metric
	if listenerFamily == "" {
		listenerFamily = defaultListenerFamily
	}
	alertFamily := s.src.AlertMetric
	if alertFamily == "" {
		alertFamily = defaultAlertFamily
	}

	family := mfs[listenerFamily]
	if family == nil {
		return nil, fmt.Errorf("prometheus %q: metric family %q not found", s.src.Name, listenerFamily)
	}

	alerts := make(map[int]string)
	if af := mfs[alertFamily]; af != nil {
		for _, m := range af.GetMetric() {
			id, ok := labelInt(m, labelFeedID)
			if !ok {
				continue
			}
			if msg := labelValue(m, labelMessage); msg != "" {
				alerts[id] = msg
			}
		}
	}

	feeds := make([]Feed, 0, len(family.GetMetric()))
	for _, m := range family.GetMetric() {
		id, ok := labelInt(m, labelFeedID)
		if !ok {
			continue
		}
		feeds = append(feeds, Feed{
			ID:        id,
			Name:      labelValue(m, labelFeedName),
			Listeners: int(sampleValue(m)),
			Alert:     alerts[id],
		})
	}
	return feeds, nil
}

// labelValue returns the value of the named label, or "" if absent.
func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// labelInt parses the named label as an integer.
func labelInt(m *dto.Metric, name string) (int, bool) {
	v := labelValue(m, name)
	if v == "" {
		return 0, false
	}
	id, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return id, true
}

// sampleValue returns the numeric value of a gauge, counter or untyped sample.
func sampleValue(m *dto.Metric) float64 {
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}
