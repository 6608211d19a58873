package worker

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/yourorg/fleetops/internal/domain"
	"github.com/yourorg/fleetops/internal/observability/metrics"
)

// Watchdog periodically scans for work sessions that have been active
// longer than the configured maximum shift. It reports findings through
// logs and metrics only; a session is never completed on an employee's
// behalf, that call belongs to a human.
type Watchdog struct {
	sessions domain.SessionRepository
	logger   *slog.Logger
	interval time.Duration
	maxShift time.Duration

	// reported keeps the ids already flagged so each overdue session is
	// counted once, not once per tick.
	reported map[int64]struct{}
}

// NewWatchdog creates a new session watchdog
func NewWatchdog(
	sessions domain.SessionRepository,
	logger *slog.Logger,
	interval time.Duration,
	maxShift time.Duration,
) *Watchdog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{
		sessions: sessions,
		logger:   logger,
		interval: interval,
		maxShift: maxShift,
		reported: make(map[int64]struct{}),
	}
}

// Start begins the watchdog loop. It runs until the context is cancelled.
func (w *Watchdog) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("session watchdog started",
		slog.Duration("interval", w.interval),
		slog.Duration("max_shift", w.maxShift),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("session watchdog stopped")
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *Watchdog) scan(ctx context.Context) {
	if count, err := w.sessions.CountActive(ctx); err == nil {
		metrics.SetActiveSessions(int(count))
	} else {
		w.logger.Error("failed to count active sessions", slog.String("error", err.Error()))
	}

	cutoff := time.Now().Add(-w.maxShift)
	overdue, err := w.sessions.Overdue(ctx, cutoff)
	if err != nil {
		w.logger.Error("failed to scan for overdue sessions", slog.String("error", err.Error()))
		return
	}

	seen := make(map[int64]struct{}, len(overdue))
	for _, o := range overdue {
		seen[o.SessionID] = struct{}{}
		if _, already := w.reported[o.SessionID]; already {
			continue
		}
		w.reported[o.SessionID] = struct{}{}

		w.logger.Warn("work session active past maximum shift",
			slog.Int64("session_id", o.SessionID),
			slog.Int64("company_id", o.CompanyID),
			slog.String("truck_number", o.TruckNumber),
			slog.String("employee", o.EmployeeName),
			slog.Time("start_time", o.StartTime),
			slog.Float64("hours", o.Hours),
		)
		metrics.ObserveOverdueSession(strconv.FormatInt(o.CompanyID, 10))
	}

	// Forget sessions that are no longer overdue so the map stays small.
	for id := range w.reported {
		if _, still := seen[id]; !still {
			delete(w.reported, id)
		}
	}
}
