package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/mindfulai/naina/internal/db"
)

// EventOption customizes a test crisis event.
type EventOption func(*db.CrisisEvent)

// MakeCrisisEvent creates and inserts a crisis event into the DB.
func MakeCrisisEvent(t *testing.T, database *db.DB, opts ...EventOption) *db.CrisisEvent {
	t.Helper()

	e := &db.CrisisEvent{
		UserID:      "user-" + randHex(4),
		Severity:    "critical",
		Matched:     []string{"kill myself"},
		Confidence:  1.0,
		Kind:        "supportive_first_response",
		CrisisCount: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	RequireNoError(t, database.RecordCrisisEvent(context.Background(), e), "record crisis event")
	return e
}

// EventForUser sets the user id.
func EventForUser(userID string) EventOption {
	return func(e *db.CrisisEvent) { e.UserID = userID }
}

// EventAt sets the creation time.
func EventAt(at time.Time) EventOption {
	return func(e *db.CrisisEvent) { e.CreatedAt = at.UTC() }
}

// EventWithSeverity sets severity and matched keywords.
func EventWithSeverity(severity string, matched ...string) EventOption {
	return func(e *db.CrisisEvent) {
		e.Severity = severity
		e.Matched = matched
	}
}

// EventWithKind sets the response kind and resulting crisis count.
func EventWithKind(kind string, count int) EventOption {
	return func(e *db.CrisisEvent) {
		e.Kind = kind
		e.CrisisCount = count
	}
}

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
