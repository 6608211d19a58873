package audit

import (
	"context"
	"log/slog"
	"time"
)

// Logger writes the audit trail for tenant-scoped actions. It is a thin
// wrapper over slog so audit entries share the process log pipeline.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, companyID, userID int64, action, resource string, resourceID int64, status, details string) {
	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.Int64("resource_id", resourceID),
		slog.Int64("company_id", companyID),
		slog.Int64("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogSessionStart(ctx context.Context, companyID, userID, sessionID int64, status, details string) {
	al.LogAction(ctx, companyID, userID, "session_start", "work_session", sessionID, status, details)
}

func (al *Logger) LogSessionEnd(ctx context.Context, companyID, userID, sessionID int64, status, details string) {
	al.LogAction(ctx, companyID, userID, "session_end", "work_session", sessionID, status, details)
}

func (al *Logger) LogLogin(ctx context.Context, companyID, userID int64, status, details string) {
	al.LogAction(ctx, companyID, userID, "login", "user", userID, status, details)
}

func (al *Logger) LogDenied(ctx context.Context, companyID, userID int64, reason string) {
	al.LogAction(ctx, companyID, userID, "access_denied", "api", 0, "denied", reason)
}
