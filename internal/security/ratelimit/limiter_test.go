package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memCounter struct {
	counts map[string]int64
	err    error
}

func (m *memCounter) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	if m.counts == nil {
		m.counts = map[string]int64{}
	}
	m.counts[key]++
	return m.counts[key], nil
}

func TestLimiterEnforcesWindow(t *testing.T) {
	l := NewLimiter(&memCounter{}, 3, time.Minute, discardLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !l.Allow(ctx, "7") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow(ctx, "7") {
		t.Fatal("request over the limit should be denied")
	}
	// Another key has its own budget.
	if !l.Allow(ctx, "8") {
		t.Fatal("other key should be allowed")
	}
}

func TestLimiterFailsOpenOnCounterErrors(t *testing.T) {
	l := NewLimiter(&memCounter{err: errors.New("connection refused")}, 1, time.Minute, discardLogger())
	ctx := context.Background()

	// Every request is allowed while the store is down, and after enough
	// failures the breaker opens and skips the store entirely.
	for i := 0; i < 20; i++ {
		if !l.Allow(ctx, "7") {
			t.Fatalf("request %d should fail open", i+1)
		}
	}
}

func TestLimiterAllowsBlankKeyAndNilCounter(t *testing.T) {
	l := NewLimiter(&memCounter{}, 1, time.Minute, discardLogger())
	if !l.Allow(context.Background(), "") {
		t.Fatal("blank key should be allowed")
	}

	noStore := NewLimiter(nil, 1, time.Minute, discardLogger())
	for i := 0; i < 5; i++ {
		if !noStore.Allow(context.Background(), "7") {
			t.Fatal("limiter without a counter must fail open")
		}
	}
}
