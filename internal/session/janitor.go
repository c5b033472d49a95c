package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultJanitorInterval is how often idle sessions are swept.
const DefaultJanitorInterval = 5 * time.Minute

// DefaultTTL is how long a user may stay idle before their counters are evicted.
const DefaultTTL = 24 * time.Hour

// JanitorConfig configures the eviction loop.
type JanitorConfig struct {
	// Interval is how often to sweep.
	Interval time.Duration
	// TTL is the idle time after which counters are evicted. Zero disables sweeping.
	TTL time.Duration
	// Logger for eviction events.
	Logger *log.Logger
	// OnSweep, if set, receives the live session count after each sweep.
	OnSweep func(active int)
}

// Janitor periodically evicts idle users from a Store.
type Janitor struct {
	store  Store
	config JanitorConfig
	logger *log.Logger

	mu      sync.Mutex
	ttl     time.Duration
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewJanitor creates a janitor for store.
func NewJanitor(store Store, cfg JanitorConfig) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultJanitorInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Janitor{
		store:  store,
		config: cfg,
		logger: logger,
		ttl:    cfg.TTL,
	}
}

// Start begins the sweep goroutine and returns immediately.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return fmt.Errorf("session janitor already running")
	}
	j.running = true
	stop, done := make(chan struct{}), make(chan struct{})
	j.stopCh, j.doneCh = stop, done
	j.mu.Unlock()

	go j.run(ctx, stop, done)
	j.logger.Info("session janitor started", "interval", j.config.Interval, "ttl", j.TTL())
	return nil
}

// Stop halts the sweep goroutine and waits for it to exit.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	close(j.stopCh)
	j.running = false
	done := j.doneCh
	j.mu.Unlock()

	<-done
	j.logger.Info("session janitor stopped")
}

// IsRunning reports whether the sweep goroutine is active.
func (j *Janitor) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// TTL returns the current idle TTL.
func (j *Janitor) TTL() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.ttl
}

// SetTTL changes the idle TTL for subsequent sweeps.
func (j *Janitor) SetTTL(ttl time.Duration) {
	j.mu.Lock()
	j.ttl = ttl
	j.mu.Unlock()
}

func (j *Janitor) run(ctx context.Context, stop, done chan struct{}) {
	defer func() {
		j.mu.Lock()
		if j.doneCh == done {
			j.running = false
		}
		j.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep runs one eviction pass and returns how many users were evicted.
func (j *Janitor) Sweep(ctx context.Context) int {
	ttl := j.TTL()
	if ttl <= 0 {
		return 0
	}

	evicted, err := j.store.EvictIdle(ctx, ttl)
	if err != nil {
		j.logger.Error("failed to evict idle sessions", "error", err)
		return evicted
	}
	if evicted > 0 {
		j.logger.Info("evicted idle sessions", "count", evicted, "ttl", ttl)
	}

	if j.config.OnSweep != nil {
		if n, err := j.store.Len(ctx); err == nil {
			j.config.OnSweep(n)
		}
	}
	return evicted
}
