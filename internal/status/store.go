package status

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FeedStatus is the latest per-feed detection snapshot, refreshed once per
// polling cycle and served by the REST API and WebSocket stream.
type FeedStatus struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Listeners int    `json:"listeners"`

	// Average is the live moving average after the cycle's update.
	Average float64 `json:"average"`

	// Delta is how far the raw count sat above the active baseline.
	Delta float64 `json:"delta"`

	Spiked bool  `json:"spiked"`
	Streak uint8 `json:"streak"`

	// Unskewed is the corrective baseline, nil while the feed is tracking
	// normally.
	Unskewed *float64 `json:"unskewed,omitempty"`

	// Hourly is the per-hour baseline table backing restarts.
	Hourly [24]float64 `json:"hourly"`

	// Alert carries directory-flagged alert text, if any.
	Alert string `json:"alert,omitempty"`
}

// Entry is a feed status together with the time it was last refreshed.
type Entry struct {
	Status    FeedStatus
	UpdatedAt time.Time
}

// Store is a thread-safe in-memory status store, keyed by feed id.
// A background goroutine (Run) periodically evicts entries that have not
// been refreshed within the configured TTL.
type Store struct {
	mu   sync.RWMutex
	data map[int]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[int]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores or replaces the status for st.ID.
func (s *Store) Put(st FeedStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[st.ID] = &Entry{
		Status:    st,
		UpdatedAt: s.now(),
	}
}

// Get returns the Entry for the given feed id. The entry may be stale if the
// TTL has elapsed but eviction has not yet run.
func (s *Store) Get(id int) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[id]
	return e, ok
}

// List returns all entries whose UpdatedAt is within the TTL. Stale entries
// that have not yet been evicted are excluded.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// interval (minimum 1 second) so dropped feeds disappear promptly. Run blocks
// until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("status: evicted stale feeds", "count", n)
			}
		}
	}
}
