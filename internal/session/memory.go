package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps counters in process memory. Lifetime is process uptime;
// pair it with a Janitor to bound growth.
type MemoryStore struct {
	mu     sync.Mutex
	users  map[string]*Counters
	now    func() time.Time
	closed bool
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		users: make(map[string]*Counters),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Counters{}, Unavailable("get counters", nil)
	}
	c, ok := s.users[NormalizeUserID(userID)]
	if !ok {
		return Counters{}, nil
	}
	return *c, nil
}

func (s *MemoryStore) IncrementCrisis(ctx context.Context, userID string) (Counters, error) {
	return s.update("increment crisis", userID, func(c *Counters) {
		c.CrisisCount++
	})
}

func (s *MemoryStore) IncrementNegative(ctx context.Context, userID string) (Counters, error) {
	return s.update("increment negative", userID, func(c *Counters) {
		c.NegativeEmotionStreak++
	})
}

func (s *MemoryStore) DecrementNegative(ctx context.Context, userID string) (Counters, error) {
	return s.update("decrement negative", userID, func(c *Counters) {
		if c.NegativeEmotionStreak > 0 {
			c.NegativeEmotionStreak--
		}
	})
}

func (s *MemoryStore) update(op, userID string, fn func(*Counters)) (Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Counters{}, Unavailable(op, nil)
	}
	id := NormalizeUserID(userID)
	c, ok := s.users[id]
	if !ok {
		c = &Counters{}
		s.users[id] = c
	}
	fn(c)
	c.LastSeen = s.now().UTC()
	return *c, nil
}

func (s *MemoryStore) Evict(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, NormalizeUserID(userID))
	return nil
}

func (s *MemoryStore) EvictIdle(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().UTC().Add(-olderThan)
	evicted := 0
	for id, c := range s.users {
		if c.LastSeen.Before(cutoff) {
			delete(s.users, id)
			evicted++
		}
	}
	return evicted, nil
}

func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

// Close marks the store unusable; later calls fail with ErrStateUnavailable.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
