package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

const defaultListLimit = 100

// Spike is one recorded spike detection.
type Spike struct {
	ID         int64     `json:"id"`
	FeedID     int       `json:"feed_id"`
	Name       string    `json:"name"`
	Listeners  int       `json:"listeners"`
	Delta      float64   `json:"delta"`
	DetectedAt time.Time `json:"detected_at"`
}

// Store persists spike detections in a SQLite database so operators can
// review what fired after the fact.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the spike database at path and applies pragmas
// and schema. SQLite performs best with a single write connection; WAL mode
// keeps readers concurrent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	// modernc.org/sqlite takes pragmas as SQL statements, not DSN params.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS spikes (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			feed_id     INTEGER NOT NULL,
			name        TEXT    NOT NULL,
			listeners   INTEGER NOT NULL,
			delta       REAL    NOT NULL,
			detected_at TEXT    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_spikes_feed_detected ON spikes(feed_id, detected_at)`,
		`CREATE INDEX IF NOT EXISTS idx_spikes_detected ON spikes(detected_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate spikes schema: %w", err)
		}
	}
	return nil
}

// RecordSpikes inserts all spikes in a single transaction. A nil or empty
// slice is a no-op.
func (s *Store) RecordSpikes(ctx context.Context, spikes []Spike) error {
	if len(spikes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, sp := range spikes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO spikes (feed_id, name, listeners, delta, detected_at)
			VALUES (?, ?, ?, ?, ?)`,
			sp.FeedID, sp.Name, sp.Listeners, sp.Delta,
			sp.DetectedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
			}
			return fmt.Errorf("insert spike for feed %d: %w", sp.FeedID, err)
		}
	}
	return tx.Commit()
}

// ListSpikes returns recorded spikes newest first. feedID 0 selects all
// feeds. A non-positive limit falls back to a server-side default.
func (s *Store) ListSpikes(ctx context.Context, feedID, limit int) ([]Spike, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT id, feed_id, name, listeners, delta, detected_at FROM spikes`
	args := []any{}
	if feedID != 0 {
		query += ` WHERE feed_id = ?`
		args = append(args, feedID)
	}
	query += ` ORDER BY detected_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list spikes: %w", err)
	}
	defer rows.Close()

	out := make([]Spike, 0)
	for rows.Next() {
		var sp Spike
		var detectedAt string
		if err := rows.Scan(&sp.ID, &sp.FeedID, &sp.Name, &sp.Listeners, &sp.Delta, &detectedAt); err != nil {
			return nil, fmt.Errorf("scan spike: %w", err)
		}
		sp.DetectedAt, _ = time.Parse(time.RFC3339, detectedAt)
		out = append(out, sp)
	}
	return out, rows.Err()
}

// CountSpikes returns the total number of recorded spikes.
func (s *Store) CountSpikes(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spikes`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count spikes: %w", err)
	}
	return n, nil
}

// Prune deletes spikes detected before cutoff and returns how many rows
// were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM spikes WHERE detected_at < ?`,
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("prune spikes: %w", err)
	}
	return res.RowsAffected()
}

// Run prunes expired spikes every interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context, retention, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := s.Prune(ctx, now.Add(-retention))
			if err != nil {
				slog.Error("history: prune failed", "err", err)
			} else if n > 0 {
				slog.Info("history: pruned expired spikes", "count", n)
			}
		}
	}
}
