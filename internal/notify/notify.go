package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/feedwatch/feedwatch/internal/config"
)

// Event is a single noteworthy feed observation, produced once per polling
// cycle for every feed that spiked or carries an alert message.
type Event struct {
	FeedID    int       `json:"feed_id"`
	Name      string    `json:"name"`
	Listeners int       `json:"listeners"`

	// Position is the feed's 1-based rank in the cycle's sorted output.
	Position int `json:"position"`

	// Total is the number of events in the same cycle.
	Total int `json:"total"`

	// Delta is how far the listener count sat above the active baseline.
	Delta float64 `json:"delta"`

	Spiked bool      `json:"spiked"`
	Alert  string    `json:"alert,omitempty"`
	At     time.Time `json:"at"`
}

// Message renders the event as a single human-readable line.
func (ev Event) Message() string {
	s := fmt.Sprintf("[%d/%d] %s: %d listeners (%+.0f)", ev.Position, ev.Total, ev.Name, ev.Listeners, ev.Delta)
	if ev.Alert != "" {
		s += " | " + ev.Alert
	}
	return s
}

func (ev Event) tag() string {
	if ev.Spiked {
		return "SPIKE"
	}
	return "ALERT"
}

type target struct {
	cfg    config.Webhook
	client *http.Client
}

// Dispatcher fans events out to the configured webhooks, pacing deliveries
// with a shared rate limiter so a noisy cycle cannot flood chat channels.
//
// Delivery errors are logged and counted but never abort a cycle.
type Dispatcher struct {
	targets []target
	limiter *rate.Limiter
}

// New creates a Dispatcher from the notify configuration. Webhooks whose URL
// resolves empty at startup are kept (the env may be set later) but logged,
// since they will be skipped at delivery time.
func New(cfg config.Notify) *Dispatcher {
	targets := make([]target, 0, len(cfg.Webhooks))
	for _, wh := range cfg.Webhooks {
		timeout := wh.Timeout
		if timeout <= 0 {
			timeout = config.DefaultWebhookTimeout
		}
		if wh.ResolvedURL() == "" {
			slog.Warn("notify: webhook URL resolves empty, deliveries will be skipped",
				"webhook", wh.Name,
				"url_env", wh.URLEnv,
			)
		}
		targets = append(targets, target{
			cfg:    wh,
			client: &http.Client{Timeout: timeout},
		})
	}

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = config.DefaultNotifyRateLimit
	}
	return &Dispatcher{
		targets: targets,
		limiter: rate.NewLimiter(rate.Limit(limit), 1),
	}
}

// Dispatch delivers every event to every configured webhook and returns the
// number of failed deliveries. It blocks while pacing; cancel ctx to bail out
// early, in which case the remaining deliveries count as failures.
func (d *Dispatcher) Dispatch(ctx context.Context, events []Event) int {
	if len(d.targets) == 0 || len(events) == 0 {
		return 0
	}

	failed := 0
	for _, ev := range events {
		for _, t := range d.targets {
			url := t.cfg.ResolvedURL()
			if url == "" {
				continue
			}
			if err := d.limiter.Wait(ctx); err != nil {
				failed++
				deliveryFailures.WithLabelValues(t.cfg.Name).Inc()
				continue
			}

			var err error
			switch t.cfg.Type {
			case "slack":
				err = t.sendSlack(ctx, url, ev)
			case "discord":
				err = t.sendDiscord(ctx, url, ev)
			case "http":
				err = t.sendHTTP(ctx, url, ev)
			default:
				slog.Warn("notify: unknown webhook type, skipping", "type", t.cfg.Type)
				continue
			}

			if err != nil {
				failed++
				deliveryFailures.WithLabelValues(t.cfg.Name).Inc()
				slog.Error("notify: webhook delivery failed",
					"webhook", t.cfg.Name,
					"type", t.cfg.Type,
					"feed", ev.Name,
					"err", err,
				)
			} else {
				slog.Debug("notify: webhook delivered",
					"webhook", t.cfg.Name,
					"type", t.cfg.Type,
					"feed", ev.Name,
				)
			}
		}
	}
	return failed
}

func (t target) sendSlack(ctx context.Context, url string, ev Event) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* %s", ev.tag(), ev.Message()),
	})
	return t.post(ctx, url, body, "")
}

func (t target) sendDiscord(ctx context.Context, url string, ev Event) error {
	body, _ := json.Marshal(map[string]string{
		"content": fmt.Sprintf("**%s** %s", ev.tag(), ev.Message()),
	})
	return t.post(ctx, url, body, "")
}

func (t target) sendHTTP(ctx context.Context, url string, ev Event) error {
	body, _ := json.Marshal(map[string]any{"event": ev})
	return t.post(ctx, url, body, t.cfg.Token())
}

func (t target) post(ctx context.Context, url string, body []byte, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
