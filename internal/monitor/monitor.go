package monitor

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/feedwatch/feedwatch/internal/config"
	"github.com/feedwatch/feedwatch/internal/feed"
	"github.com/feedwatch/feedwatch/internal/history"
	"github.com/feedwatch/feedwatch/internal/notify"
	"github.com/feedwatch/feedwatch/internal/scraper"
	"github.com/feedwatch/feedwatch/internal/security"
	"github.com/feedwatch/feedwatch/internal/status"
)

// Notifier delivers a cycle's event batch. Satisfied by *notify.Dispatcher.
type Notifier interface {
	Dispatch(ctx context.Context, events []notify.Event) int
}

// SpikeRecorder persists a cycle's spike detections. Satisfied by
// *history.Store.
type SpikeRecorder interface {
	RecordSpikes(ctx context.Context, spikes []history.Spike) error
}

// Monitor runs the per-cycle detection pipeline: scrape every source, step
// each feed's spike state, fan out events, record spikes, refresh the status
// store, and persist the registry snapshot.
//
// Monitor is safe for concurrent use; ApplyConfig may be called from the
// config watcher while a cycle runs.
type Monitor struct {
	mu        sync.Mutex
	params    feed.Params
	minimum   int
	sortOrder string
	stateFile string
	sources   []config.Source
	notifier  Notifier
	registry  feed.Registry
	certs     []security.CertStatus

	scrapers []scraper.Scraper
	statuses *status.Store
	recorder SpikeRecorder

	now func() time.Time // injectable for deterministic tests
}

// New creates a Monitor from the loaded config. reg carries baselines across
// restarts; pass nil to start empty.
func New(cfg *config.Config, scrapers []scraper.Scraper, reg feed.Registry, st *status.Store, rec SpikeRecorder) *Monitor {
	if reg == nil {
		reg = make(feed.Registry)
	}
	return &Monitor{
		params:    paramsFrom(cfg.Detector),
		minimum:   cfg.MinimumListeners,
		sortOrder: cfg.Sort,
		stateFile: cfg.StateFile,
		sources:   cfg.Sources,
		notifier:  notify.New(cfg.Notify),
		registry:  reg,
		scrapers:  scrapers,
		statuses:  st,
		recorder:  rec,
		now:       time.Now,
	}
}

// paramsFrom maps the config detector block onto the detection constants.
func paramsFrom(d config.Detector) feed.Params {
	return feed.Params{
		SpikeBase:           d.SpikeBase,
		LowValueSensitivity: d.LowValueSensitivity,
		DecayRate:           d.DecayRate,
		DecayPeriod:         d.DecayPeriod,
		ResetFraction:       d.ResetFraction,
		AdjustFraction:      d.AdjustFraction,
		RequiredStreak:      uint8(d.RequiredStreak),
	}
}

// Cycle runs one full detection pass. Scrape failures and delivery failures
// are logged and counted but never abort the cycle.
func (m *Monitor) Cycle(ctx context.Context) {
	wallStart := time.Now()

	m.mu.Lock()
	params := m.params
	minimum := m.minimum
	sortOrder := m.sortOrder
	stateFile := m.stateFile
	notifier := m.notifier
	scrapers := m.scrapers
	sources := m.sources
	m.mu.Unlock()

	// Scrape every source; on id collisions the later source wins.
	merged := make(map[int]scraper.Feed)
	for _, s := range scrapers {
		got, err := s.Scrape(ctx)
		if err != nil {
			scrapeErrors.WithLabelValues(s.Name()).Inc()
			slog.Warn("monitor: scrape failed", "source", s.Name(), "err", err)
			continue
		}
		for _, f := range got {
			merged[f.ID] = f
		}
	}

	now := m.now()
	hour := now.UTC().Hour()

	type outcome struct {
		f      scraper.Feed
		st     *feed.State
		spiked bool
	}

	skipped := 0
	outcomes := make([]outcome, 0, len(merged))

	m.mu.Lock()
	for _, f := range sortFeedsByID(merged) {
		if f.Listeners < minimum {
			skipped++
			continue
		}
		st := m.registry.GetOrCreate(f.ID, func() *feed.State { return feed.NewState(0) })
		spiked := st.Step(params, hour, float64(f.Listeners))
		outcomes = append(outcomes, outcome{f: f, st: st, spiked: spiked})
	}
	if err := feed.SaveFile(stateFile, m.registry); err != nil {
		slog.Error("monitor: state snapshot failed", "path", stateFile, "err", err)
	}
	m.mu.Unlock()

	// Refresh the status store and collect the cycle's events.
	var events []notify.Event
	var spikes []history.Spike
	for _, o := range outcomes {
		v := float64(o.f.Listeners)
		delta := o.st.AverageDelta(v)

		var unskewed *float64
		if u, ok := o.st.Unskewed(); ok {
			held := u
			unskewed = &held
		}
		m.statuses.Put(status.FeedStatus{
			ID:        o.f.ID,
			Name:      o.f.Name,
			Listeners: o.f.Listeners,
			Average:   o.st.Avg.Current,
			Delta:     delta,
			Spiked:    o.spiked,
			Streak:    o.st.Streak(),
			Unskewed:  unskewed,
			Hourly:    o.st.Hourly(),
			Alert:     o.f.Alert,
		})

		if o.spiked || o.f.Alert != "" {
			events = append(events, notify.Event{
				FeedID:    o.f.ID,
				Name:      o.f.Name,
				Listeners: o.f.Listeners,
				Delta:     delta,
				Spiked:    o.spiked,
				Alert:     o.f.Alert,
				At:        now,
			})
		}
		if o.spiked {
			spikes = append(spikes, history.Spike{
				FeedID:     o.f.ID,
				Name:       o.f.Name,
				Listeners:  o.f.Listeners,
				Delta:      delta,
				DetectedAt: now,
			})
		}
	}

	// Order the batch and hand out 1-based positions.
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Listeners != b.Listeners {
			if sortOrder == config.SortAscending {
				return a.Listeners < b.Listeners
			}
			return a.Listeners > b.Listeners
		}
		return a.FeedID < b.FeedID
	})
	for i := range events {
		events[i].Position = i + 1
		events[i].Total = len(events)
	}

	if failed := notifier.Dispatch(ctx, events); failed > 0 {
		slog.Warn("monitor: webhook deliveries failed", "failed", failed)
	}
	if err := m.recorder.RecordSpikes(ctx, spikes); err != nil {
		slog.Error("monitor: spike history write failed", "err", err)
	}

	m.refreshCerts(ctx, sources)

	cyclesTotal.Inc()
	cycleDuration.Observe(time.Since(wallStart).Seconds())
	spikesDetected.Add(float64(len(spikes)))
	feedsTracked.Set(float64(len(outcomes)))

	slog.Info("monitor: cycle complete",
		"feeds", len(outcomes),
		"skipped", skipped,
		"spikes", len(spikes),
		"events", len(events),
		"took", time.Since(wallStart),
	)
}

// ApplyConfig swaps in the tuning, filtering, ordering, persistence path and
// webhook targets from a reloaded config. Source changes require a restart;
// existing scrapers are kept.
func (m *Monitor) ApplyConfig(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.params = paramsFrom(cfg.Detector)
	m.minimum = cfg.MinimumListeners
	m.sortOrder = cfg.Sort
	m.stateFile = cfg.StateFile
	m.notifier = notify.New(cfg.Notify)

	if !sourcesEqual(m.sources, cfg.Sources) {
		slog.Warn("monitor: source list changed on reload; restart to apply source changes")
	}

	slog.Info("monitor: config applied",
		"minimum_listeners", cfg.MinimumListeners,
		"sort", cfg.Sort,
		"webhooks", len(cfg.Notify.Webhooks),
	)
}

// SaveState writes the registry snapshot. Called once more at shutdown so a
// restart resumes from the freshest baselines.
func (m *Monitor) SaveState() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return feed.SaveFile(m.stateFile, m.registry)
}

// Certs returns the TLS certificate statuses gathered in the most recent
// cycle.
func (m *Monitor) Certs() []security.CertStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]security.CertStatus, len(m.certs))
	copy(out, m.certs)
	return out
}

func (m *Monitor) refreshCerts(ctx context.Context, sources []config.Source) {
	var certs []security.CertStatus
	for _, src := range sources {
		if cs := security.CheckCert(ctx, src); cs != nil {
			certs = append(certs, *cs)
		}
	}
	m.mu.Lock()
	m.certs = certs
	m.mu.Unlock()
}

func sortFeedsByID(merged map[int]scraper.Feed) []scraper.Feed {
	out := make([]scraper.Feed, 0, len(merged))
	for _, f := range merged {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sourcesEqual(a, b []config.Source) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Type != b[i].Type || a[i].URL != b[i].URL {
			return false
		}
	}
	return true
}
