// Package session holds the per-user rolling counters that modulate escalation,
// and the stores that keep them.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStateUnavailable is wrapped by every store failure. Callers seeing it must
// fail safe: treat the turn as if the crisis count were at its maximum.
var ErrStateUnavailable = errors.New("session state unavailable")

// Counters is the short-term conversation state for one user.
type Counters struct {
	CrisisCount           int       `json:"crisis_count"`
	NegativeEmotionStreak int       `json:"negative_emotion_streak"`
	LastSeen              time.Time `json:"last_seen"`
}

// Store keeps Counters by user id. Every mutation is an atomic
// read-modify-write for that user id and returns the updated counters.
// Get on an unknown user returns zero counters and no error.
type Store interface {
	Get(ctx context.Context, userID string) (Counters, error)
	IncrementCrisis(ctx context.Context, userID string) (Counters, error)
	IncrementNegative(ctx context.Context, userID string) (Counters, error)
	// DecrementNegative lowers the negative streak, never below zero.
	DecrementNegative(ctx context.Context, userID string) (Counters, error)
	Evict(ctx context.Context, userID string) error
	// EvictIdle removes users not seen within olderThan and reports how many.
	EvictIdle(ctx context.Context, olderThan time.Duration) (int, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

// Unavailable wraps err so that errors.Is(result, ErrStateUnavailable) holds.
func Unavailable(op string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, ErrStateUnavailable)
	}
	if errors.Is(err, ErrStateUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStateUnavailable, err)
}

// NormalizeUserID maps an empty id to "default", matching anonymous clients.
func NormalizeUserID(userID string) string {
	if userID == "" {
		return "default"
	}
	return userID
}
