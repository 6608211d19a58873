package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/fleetops/internal/reliability/circuitbreaker"
)

// Counter is the backing store for request counts. The Redis client
// implements it; tests substitute an in-memory fake.
type Counter interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Limiter is a fixed-window per-company rate limiter backed by a shared
// counter store, so limits hold across horizontally scaled instances.
// Counter failures trip a circuit breaker and the limiter fails open:
// losing Redis must never take request traffic down with it.
type Limiter struct {
	counter Counter
	breaker *circuitbreaker.CircuitBreaker
	maxReqs int
	window  time.Duration
	logger  *slog.Logger
}

func NewLimiter(counter Counter, maxRequests int, window time.Duration, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Limiter{
		counter: counter,
		breaker: circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second),
		maxReqs: maxRequests,
		window:  window,
	}
	l.logger = logger
	l.breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("rate limiter store circuit state changed",
			slog.Int("from", int(from)),
			slog.Int("to", int(to)),
		)
	})
	return l
}

// Allow reports whether a request for the given key may proceed.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if key == "" || l.counter == nil {
		return true
	}
	if !l.breaker.AllowRequest() {
		return true
	}

	bucket := fmt.Sprintf("ratelimit:%s:%d", key, time.Now().Unix()/int64(l.window.Seconds()))
	count, err := l.counter.IncrWithTTL(ctx, bucket, l.window)
	if err != nil {
		l.breaker.RecordFailure()
		l.logger.Warn("rate limit counter unavailable, failing open",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return true
	}
	l.breaker.RecordSuccess()

	return count <= int64(l.maxReqs)
}
