package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetops_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleetops_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	sessionStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetops_session_starts_total",
		Help: "Count of work session start attempts by result",
	}, []string{"result"})

	sessionEnds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetops_session_ends_total",
		Help: "Count of work session end attempts by result",
	}, []string{"result"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleetops_active_sessions",
		Help: "Number of currently active work sessions across companies",
	})

	authFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetops_auth_failures_total",
		Help: "Count of rejected requests by failure stage (token, principal)",
	}, []string{"stage"})

	overdueSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetops_overdue_sessions_total",
		Help: "Count of sessions flagged by the watchdog as active too long",
	}, []string{"company_id"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveSessionStart records a session start attempt with a result label
// (success, rejected, conflict, error).
func ObserveSessionStart(result string) {
	sessionStarts.WithLabelValues(result).Inc()
}

// ObserveSessionEnd records a session end attempt with a result label
// (success, not_found, error).
func ObserveSessionEnd(result string) {
	sessionEnds.WithLabelValues(result).Inc()
}

// SetActiveSessions sets the active session gauge.
func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}

// IncActiveSessions increments the active session gauge.
func IncActiveSessions() {
	activeSessions.Inc()
}

// DecActiveSessions decrements the active session gauge.
func DecActiveSessions() {
	activeSessions.Dec()
}

// ObserveAuthFailure records a rejected request at the given stage.
func ObserveAuthFailure(stage string) {
	authFailures.WithLabelValues(stage).Inc()
}

// ObserveOverdueSession records a watchdog hit for a company.
func ObserveOverdueSession(companyID string) {
	overdueSessions.WithLabelValues(companyID).Inc()
}
