package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mindfulai/naina/internal/session"
)

// CounterStore implements session.Store on the session_counters table.
// Each mutation is a single UPSERT ... RETURNING statement, so it is atomic
// even when several processes share the database file.
type CounterStore struct {
	db  *DB
	now func() time.Time
}

// Counters returns a session.Store backed by this database.
func (db *DB) Counters() *CounterStore {
	return &CounterStore{db: db, now: time.Now}
}

var _ session.Store = (*CounterStore)(nil)

func (s *CounterStore) Get(ctx context.Context, userID string) (session.Counters, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT crisis_count, negative_streak, last_seen
		FROM session_counters WHERE user_id = ?
	`, session.NormalizeUserID(userID))

	c, err := scanCounters(row)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Counters{}, nil
	}
	if err != nil {
		return session.Counters{}, session.Unavailable("get counters", err)
	}
	return c, nil
}

func (s *CounterStore) IncrementCrisis(ctx context.Context, userID string) (session.Counters, error) {
	return s.upsert(ctx, "increment crisis", userID, 1, 0,
		`crisis_count = crisis_count + 1`)
}

func (s *CounterStore) IncrementNegative(ctx context.Context, userID string) (session.Counters, error) {
	return s.upsert(ctx, "increment negative", userID, 0, 1,
		`negative_streak = negative_streak + 1`)
}

func (s *CounterStore) DecrementNegative(ctx context.Context, userID string) (session.Counters, error) {
	return s.upsert(ctx, "decrement negative", userID, 0, 0,
		`negative_streak = MAX(negative_streak - 1, 0)`)
}

// upsert inserts a fresh row with the given initial values, or applies set to
// the existing row, and returns the resulting counters.
func (s *CounterStore) upsert(ctx context.Context, op, userID string, crisis, negative int, set string) (session.Counters, error) {
	now := s.now().UTC().UnixNano()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO session_counters (user_id, crisis_count, negative_streak, last_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET `+set+`, last_seen = excluded.last_seen
		RETURNING crisis_count, negative_streak, last_seen
	`, session.NormalizeUserID(userID), crisis, negative, now)

	c, err := scanCounters(row)
	if err != nil {
		return session.Counters{}, session.Unavailable(op, err)
	}
	return c, nil
}

func (s *CounterStore) Evict(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_counters WHERE user_id = ?`, session.NormalizeUserID(userID)); err != nil {
		return session.Unavailable("evict", err)
	}
	return nil
}

func (s *CounterStore) EvictIdle(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-olderThan).UnixNano()
	result, err := s.db.ExecContext(ctx, `DELETE FROM session_counters WHERE last_seen < ?`, cutoff)
	if err != nil {
		return 0, session.Unavailable("evict idle", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, session.Unavailable("evict idle", fmt.Errorf("getting rows affected: %w", err))
	}
	return int(n), nil
}

func (s *CounterStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_counters`).Scan(&n); err != nil {
		return 0, session.Unavailable("count sessions", err)
	}
	return n, nil
}

// Close is a no-op; the owning DB is closed by its opener.
func (s *CounterStore) Close() error {
	return nil
}

// ListCounters returns every tracked user's counters, most recently seen first.
func (s *CounterStore) ListCounters(ctx context.Context) (map[string]session.Counters, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, crisis_count, negative_streak, last_seen
		FROM session_counters ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying counters: %w", err)
	}
	defer rows.Close()

	out := make(map[string]session.Counters)
	for rows.Next() {
		var (
			id   string
			c    session.Counters
			seen int64
		)
		if err := rows.Scan(&id, &c.CrisisCount, &c.NegativeEmotionStreak, &seen); err != nil {
			return nil, fmt.Errorf("scanning counters row: %w", err)
		}
		c.LastSeen = time.Unix(0, seen).UTC()
		out[id] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating counters: %w", err)
	}
	return out, nil
}

func scanCounters(row *sql.Row) (session.Counters, error) {
	var (
		c    session.Counters
		seen int64
	)
	if err := row.Scan(&c.CrisisCount, &c.NegativeEmotionStreak, &seen); err != nil {
		return session.Counters{}, err
	}
	c.LastSeen = time.Unix(0, seen).UTC()
	return c, nil
}
