package session

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestJanitor_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore(WithClock(clock.Now))

	var active atomic.Int64
	j := NewJanitor(store, JanitorConfig{
		TTL:     time.Hour,
		Logger:  quietLogger(),
		OnSweep: func(n int) { active.Store(int64(n)) },
	})

	_, _ = store.IncrementCrisis(ctx, "a")
	_, _ = store.IncrementCrisis(ctx, "b")
	clock.Advance(90 * time.Minute)
	_, _ = store.IncrementCrisis(ctx, "c")

	if n := j.Sweep(ctx); n != 2 {
		t.Fatalf("evicted=%d want 2", n)
	}
	if active.Load() != 1 {
		t.Fatalf("OnSweep active=%d want 1", active.Load())
	}

	j.SetTTL(0)
	clock.Advance(48 * time.Hour)
	if n := j.Sweep(ctx); n != 0 {
		t.Fatalf("zero TTL should disable sweeping, evicted=%d", n)
	}
}

func TestJanitor_StartStop(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore(WithClock(clock.Now))
	_, _ = store.IncrementCrisis(ctx, "a")
	clock.Advance(time.Hour)

	j := NewJanitor(store, JanitorConfig{
		Interval: 10 * time.Millisecond,
		TTL:      time.Minute,
		Logger:   quietLogger(),
	})
	if err := j.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := j.Start(ctx); err == nil {
		t.Fatalf("second Start should fail")
	}
	if !j.IsRunning() {
		t.Fatalf("expected running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if n, _ := store.Len(ctx); n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("janitor never evicted the idle user")
		}
		time.Sleep(5 * time.Millisecond)
	}

	j.Stop()
	if j.IsRunning() {
		t.Fatalf("expected stopped")
	}
	j.Stop()
}

func TestJanitor_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	j := NewJanitor(NewMemoryStore(), JanitorConfig{Interval: time.Hour, TTL: time.Hour, Logger: quietLogger()})
	if err := j.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	select {
	case <-j.doneCh:
	case <-time.After(time.Second):
		t.Fatalf("janitor did not exit after cancel")
	}
	if j.IsRunning() {
		t.Fatalf("janitor should report stopped after cancel")
	}
}
