// Package store persists privacy-conscious site analytics: hashed visitor
// hits and contact form outcomes. Contact message content is never stored.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Outcome of a contact submission as recorded for the dashboard.
type Outcome string

const (
	OutcomeSubmitted Outcome = "submitted"
	OutcomeFailed    Outcome = "failed"
)

// Visit is one tracked page view. The IP is hashed before it gets here.
type Visit struct {
	ID        int64  `db:"id" json:"id"`
	HashedIP  string `db:"hashed_ip" json:"hashed_ip"`
	UserAgent string `db:"user_agent" json:"user_agent"`
	Path      string `db:"path" json:"path"`
	Unix      int64  `db:"timestamp" json:"-"`
}

// Time is when the visit happened.
func (v Visit) Time() time.Time { return time.Unix(v.Unix, 0) }

// ContactEvent records that a submission finished, and how.
type ContactEvent struct {
	SessionHash string
	Outcome     Outcome
	At          time.Time
}

type Stats struct {
	TotalVisitors      int64   `json:"total_visitors"`
	UniqueVisitors     int64   `json:"unique_visitors"`
	VisitorsToday      int64   `json:"visitors_today"`
	VisitorsThisWeek   int64   `json:"visitors_this_week"`
	ContactSubmissions int64   `json:"contact_submissions"`
	ContactFailures    int64   `json:"contact_failures"`
	RecentVisitors     []Visit `json:"recent_visitors"`
}

const schema = `
CREATE TABLE IF NOT EXISTS visitors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	hashed_ip TEXT NOT NULL,
	user_agent TEXT NOT NULL DEFAULT '',
	path TEXT NOT NULL DEFAULT '',
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS visitors_timestamp ON visitors(timestamp);
CREATE TABLE IF NOT EXISTS contact_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_hash TEXT NOT NULL,
	outcome TEXT NOT NULL,
	timestamp INTEGER NOT NULL
);`

// Store wraps the SQLite database.
type Store struct {
	db *sqlx.DB
}

// Open connects to the SQLite file at path (":memory:" works) and creates
// the tables if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// one writer; also keeps ":memory:" to a single database
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) RecordVisit(ctx context.Context, hashedIP, userAgent, path string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visitors (hashed_ip, user_agent, path, timestamp) VALUES (?, ?, ?, ?)`,
		hashedIP, userAgent, path, at.Unix())
	if err != nil {
		return fmt.Errorf("store: record visit: %w", err)
	}
	return nil
}

func (s *Store) RecordContactEvent(ctx context.Context, ev ContactEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contact_events (session_hash, outcome, timestamp) VALUES (?, ?, ?)`,
		ev.SessionHash, string(ev.Outcome), ev.At.Unix())
	if err != nil {
		return fmt.Errorf("store: record contact event: %w", err)
	}
	return nil
}

// RecentVisitors returns the newest visits first.
func (s *Store) RecentVisitors(ctx context.Context, limit int) ([]Visit, error) {
	var visits []Visit
	err := s.db.SelectContext(ctx, &visits, `
		SELECT id, hashed_ip, user_agent, path, timestamp
		FROM visitors
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent visitors: %w", err)
	}
	return visits, nil
}

// Stats aggregates the dashboard numbers relative to now.
func (s *Store) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	stats := &Stats{}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := now.Add(-7 * 24 * time.Hour)

	counts := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&stats.TotalVisitors, `SELECT COUNT(*) FROM visitors`, nil},
		{&stats.UniqueVisitors, `SELECT COUNT(DISTINCT hashed_ip) FROM visitors`, nil},
		{&stats.VisitorsToday, `SELECT COUNT(*) FROM visitors WHERE timestamp >= ?`, []any{dayStart.Unix()}},
		{&stats.VisitorsThisWeek, `SELECT COUNT(*) FROM visitors WHERE timestamp >= ?`, []any{weekStart.Unix()}},
		{&stats.ContactSubmissions, `SELECT COUNT(*) FROM contact_events WHERE outcome = ?`, []any{string(OutcomeSubmitted)}},
		{&stats.ContactFailures, `SELECT COUNT(*) FROM contact_events WHERE outcome = ?`, []any{string(OutcomeFailed)}},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dst, c.query, c.args...); err != nil {
			return nil, fmt.Errorf("store: stats: %w", err)
		}
	}

	recent, err := s.RecentVisitors(ctx, 50)
	if err != nil {
		return nil, err
	}
	stats.RecentVisitors = recent
	return stats, nil
}

// Cleanup deletes visits older than before and returns how many went.
func (s *Store) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM visitors WHERE timestamp < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("store: cleanup: %w", err)
	}
	return res.RowsAffected()
}
