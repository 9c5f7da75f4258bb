// Package history persists per-provider usage samples across polls, backing
// the sparkline view and post-hoc inspection of quota burn-down.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/janekbaraniewski/usagesync/internal/core"
)

// Point is one recorded sample for a provider.
type Point struct {
	ObservedAt  time.Time
	UsedPercent float64
	CostUsed    float64
	CostLimit   float64
	Available   bool
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func OpenStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: creating DB dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: opening DB: %w", err)
	}
	if err := configureSQLiteConnection(db); err != nil {
		db.Close()
		return nil, err
	}

	store := NewStore(db)
	if err := store.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DefaultPath places the database next to the rest of the app's cached state.
func DefaultPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "usagesync", "history.db")
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS poll_samples (
			provider_id TEXT NOT NULL,
			observed_at TEXT NOT NULL,
			used_percent REAL NOT NULL,
			cost_used REAL NOT NULL,
			cost_limit REAL NOT NULL,
			available INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_poll_samples_provider_time ON poll_samples(provider_id, observed_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("history: init schema: %w", err)
		}
	}
	return nil
}

// RecordPoll appends one sample per snapshot, all stamped with the same
// observation time so a poll reads back as a single cross-provider cut.
func (s *Store) RecordPoll(ctx context.Context, snaps []core.UsageSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	observedAt := s.now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO poll_samples (provider_id, observed_at, used_percent, cost_used, cost_limit, available)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("history: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, snap := range snaps {
		available := 0
		if snap.IsAvailable {
			available = 1
		}
		if _, err := stmt.ExecContext(ctx,
			snap.ProviderID, observedAt, core.UsedPercent(snap),
			snap.CostUsed, snap.CostLimit, available,
		); err != nil {
			return fmt.Errorf("history: insert sample for %s: %w", snap.ProviderID, err)
		}
	}
	return tx.Commit()
}

// RecentSeries returns up to limit samples for a provider, oldest first.
func (s *Store) RecentSeries(ctx context.Context, providerID string, limit int) ([]Point, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT observed_at, used_percent, cost_used, cost_limit, available
		 FROM poll_samples
		 WHERE provider_id = ?
		 ORDER BY observed_at DESC
		 LIMIT ?`, providerID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query series: %w", err)
	}
	defer rows.Close()

	var out []Point
	for rows.Next() {
		var p Point
		var observedAt string
		var available int
		if err := rows.Scan(&observedAt, &p.UsedPercent, &p.CostUsed, &p.CostLimit, &available); err != nil {
			return nil, fmt.Errorf("history: scan sample: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, observedAt)
		if err != nil {
			return nil, fmt.Errorf("history: parse sample time: %w", err)
		}
		p.ObservedAt = ts
		p.Available = available != 0
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate samples: %w", err)
	}

	// Reverse into chronological order for plotting.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Prune drops samples older than the retention window.
func (s *Store) Prune(ctx context.Context, retain time.Duration) error {
	cutoff := s.now().UTC().Add(-retain).Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM poll_samples WHERE observed_at < ?`, cutoff); err != nil {
		return fmt.Errorf("history: prune samples: %w", err)
	}
	return nil
}
