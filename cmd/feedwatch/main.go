package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/feedwatch/feedwatch/internal/api"
	"github.com/feedwatch/feedwatch/internal/config"
	"github.com/feedwatch/feedwatch/internal/feed"
	"github.com/feedwatch/feedwatch/internal/history"
	"github.com/feedwatch/feedwatch/internal/monitor"
	"github.com/feedwatch/feedwatch/internal/scraper"
	"github.com/feedwatch/feedwatch/internal/security"
	"github.com/feedwatch/feedwatch/internal/status"
	"github.com/feedwatch/feedwatch/internal/ws"
)

func main() {
	configPath := flag.String("config", "feedwatch.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("feedwatch starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"sources", len(cfg.Sources),
		"webhooks", len(cfg.Notify.Webhooks),
		"poll_interval", cfg.PollInterval,
		"listen", cfg.Server.Listen,
	)

	// One-shot audit of the loaded config for weak transport and auth settings.
	for _, w := range security.Audit(cfg) {
		slog.Warn("security audit finding", "key", w.Key, "level", w.Level, "detail", w.Detail)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Restore per-feed baselines from the previous run. A missing or corrupt
	// snapshot is not fatal; detection just restarts from empty averages.
	reg, err := feed.LoadFile(cfg.StateFile, time.Now().UTC().Hour())
	if err != nil {
		slog.Warn("starting with empty baselines", "path", cfg.StateFile, "err", err)
		reg = make(feed.Registry)
	} else {
		slog.Info("baselines restored", "path", cfg.StateFile, "feeds", len(reg))
	}

	// Spike history database with background retention pruning.
	hist, err := history.Open(cfg.History.Path)
	if err != nil {
		slog.Error("failed to open spike history", "path", cfg.History.Path, "err", err)
		os.Exit(1)
	}
	defer hist.Close()
	go hist.Run(ctx, cfg.History.Retention, cfg.History.PruneInterval)

	// Build one scraper per configured source.
	var scrapers []scraper.Scraper
	for _, src := range cfg.Sources {
		s, err := scraper.New(src)
		if err != nil {
			slog.Error("skipping source, could not build scraper", "source", src.Name, "err", err)
			continue
		}
		scrapers = append(scrapers, s)
		slog.Info("registered source", "source", src.Name, "type", src.Type, "url", src.URL)
	}
	if len(scrapers) == 0 {
		slog.Warn("no usable sources, daemon will serve status and history only")
	}

	// Status store with background TTL eviction.
	statuses := status.New(cfg.Server.StatusTTL)
	go statuses.Run(ctx)

	mon := monitor.New(cfg, scrapers, reg, statuses, hist)

	// WebSocket hub broadcasts feed snapshots to connected clients.
	hub := ws.New(statuses, cfg.Server.BroadcastInterval)
	go hub.Run(ctx)

	// Combined HTTP server: REST API, WebSocket stream and Prometheus metrics.
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.APIKeyMiddleware(cfg.Server.APIKey(), api.New(statuses, hist, mon.Certs)))
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Server.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	// Watch the config file for hot-reload. Tuning, filtering, ordering and
	// webhook changes apply immediately; source changes require a restart.
	intervals := make(chan time.Duration, 1)
	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			mon.ApplyConfig(next)
			select {
			case intervals <- next.PollInterval:
			default:
			}
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// Detection loop: one immediate cycle, then one per poll interval.
	pollEvery := cfg.PollInterval
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	mon.Cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("feedwatch shutting down")
			httpSrv.Shutdown(context.Background()) //nolint:errcheck
			if err := mon.SaveState(); err != nil {
				slog.Error("final state snapshot failed", "err", err)
			}
			return
		case d := <-intervals:
			if d != pollEvery {
				ticker.Reset(d)
				pollEvery = d
				slog.Info("poll interval updated", "poll_interval", d)
			}
		case <-ticker.C:
			mon.Cycle(ctx)
		}
	}
}
