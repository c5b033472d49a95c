package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrEventNotFound is returned when a crisis event is not found.
var ErrEventNotFound = errors.New("crisis event not found")

// CrisisEvent is one audited escalation: a turn whose verdict was a crisis.
// It records classification metadata only, never message text.
type CrisisEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Severity    string    `json:"severity"`
	Matched     []string  `json:"matched_keywords"`
	Confidence  float64   `json:"confidence"`
	Kind        string    `json:"response_kind"`
	CrisisCount int       `json:"crisis_count"`
	FailSafe    bool      `json:"fail_safe"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordCrisisEvent inserts e, assigning its ID and CreatedAt when unset.
func (db *DB) RecordCrisisEvent(ctx context.Context, e *CrisisEvent) error {
	if e.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if e.Severity == "" {
		return fmt.Errorf("severity is required")
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Matched == nil {
		e.Matched = []string{}
	}

	matched, err := json.Marshal(e.Matched)
	if err != nil {
		return fmt.Errorf("encoding matched keywords: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO crisis_events (id, user_id, severity, matched, confidence, kind, crisis_count, fail_safe, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.Severity, string(matched), e.Confidence, e.Kind, e.CrisisCount, e.FailSafe, e.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording crisis event: %w", err)
	}
	return nil
}

// GetCrisisEvent retrieves an event by ID.
func (db *DB) GetCrisisEvent(ctx context.Context, id string) (*CrisisEvent, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, user_id, severity, matched, confidence, kind, crisis_count, fail_safe, created_at
		FROM crisis_events WHERE id = ?
	`, id)

	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return e, err
}

// ListCrisisEvents returns the newest events first. An empty userID lists
// every user; a limit of zero or less means no limit.
func (db *DB) ListCrisisEvents(ctx context.Context, userID string, limit int) ([]*CrisisEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, severity, matched, confidence, kind, crisis_count, fail_safe, created_at
		FROM crisis_events
		WHERE (? = '' OR user_id = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying crisis events: %w", err)
	}
	defer rows.Close()

	var events []*CrisisEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating crisis events: %w", err)
	}
	return events, nil
}

// DeleteCrisisEvents removes every event for userID and reports how many.
func (db *DB) DeleteCrisisEvents(ctx context.Context, userID string) (int, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM crisis_events WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("deleting crisis events: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*CrisisEvent, error) {
	e := &CrisisEvent{}
	var matched, createdAt string

	err := row.Scan(&e.ID, &e.UserID, &e.Severity, &matched, &e.Confidence, &e.Kind, &e.CrisisCount, &e.FailSafe, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning crisis event: %w", err)
	}

	if err := json.Unmarshal([]byte(matched), &e.Matched); err != nil {
		return nil, fmt.Errorf("parsing matched keywords: %w", err)
	}
	e.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return e, nil
}
