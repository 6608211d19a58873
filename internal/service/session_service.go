package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/fleetops/internal/domain"
	"github.com/yourorg/fleetops/internal/observability/metrics"
	"github.com/yourorg/fleetops/internal/security/audit"
)

// SessionService implements the work-session lifecycle. All operations are
// company-scoped: ids from other companies behave as missing.
type SessionService struct {
	sessions  domain.SessionRepository
	trucks    domain.TruckRepository
	employees domain.EmployeeRepository
	audit     *audit.Logger
	logger    *slog.Logger

	defaultPageSize int
	maxPageSize     int
}

// NewSessionService creates a new work-session service
func NewSessionService(
	sessions domain.SessionRepository,
	trucks domain.TruckRepository,
	employees domain.EmployeeRepository,
	auditLog *audit.Logger,
	logger *slog.Logger,
	defaultPageSize, maxPageSize int,
) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &SessionService{
		sessions:        sessions,
		trucks:          trucks,
		employees:       employees,
		audit:           auditLog,
		logger:          logger,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// StartInput carries a session start request.
type StartInput struct {
	TruckID    int64  `json:"truck_id"`
	EmployeeID int64  `json:"employee_id"`
	Notes      string `json:"notes"`
}

// Start opens a work session for an employee on a truck. Both must belong
// to the caller's company and be active. The repository insert is the final
// arbiter of the one-active-session rule; the ActiveByEmployee pre-check
// only exists to produce a descriptive conflict in the common case.
func (s *SessionService) Start(ctx context.Context, companyID, userID int64, in StartInput) (*domain.WorkSession, error) {
	if in.TruckID <= 0 || in.EmployeeID <= 0 {
		return nil, domain.Invalid("truck_id and employee_id are required")
	}

	truck, err := s.trucks.GetByID(ctx, companyID, in.TruckID)
	if err != nil {
		metrics.ObserveSessionStart("rejected")
		return nil, err
	}
	if truck.Status != domain.TruckActive {
		metrics.ObserveSessionStart("rejected")
		return nil, domain.Invalid("truck %s is not in service", truck.TruckNumber)
	}

	employee, err := s.employees.GetByID(ctx, companyID, in.EmployeeID)
	if err != nil {
		metrics.ObserveSessionStart("rejected")
		return nil, err
	}
	if employee.Status != domain.EmployeeActive {
		metrics.ObserveSessionStart("rejected")
		return nil, domain.Invalid("employee %s is not active", employee.EmployeeNo)
	}

	if existing, err := s.sessions.ActiveByEmployee(ctx, companyID, in.EmployeeID); err == nil {
		metrics.ObserveSessionStart("conflict")
		s.audit.LogSessionStart(ctx, companyID, userID, existing.ID, "conflict", employee.FullName())
		return nil, domain.Conflict("employee %s already has an active session on truck %s",
			employee.FullName(), existing.TruckNumber)
	} else if domain.KindOf(err) != domain.KindNotFound {
		return nil, err
	}

	session := &domain.WorkSession{
		TruckID:    in.TruckID,
		EmployeeID: in.EmployeeID,
		StartedBy:  userID,
		Notes:      in.Notes,
	}
	if err := s.sessions.Start(ctx, session); err != nil {
		if domain.KindOf(err) == domain.KindConflict {
			metrics.ObserveSessionStart("conflict")
		} else {
			metrics.ObserveSessionStart("error")
		}
		return nil, err
	}

	session.TruckNumber = truck.TruckNumber
	session.LicensePlate = truck.LicensePlate
	session.EmployeeNo = employee.EmployeeNo
	session.EmployeeName = employee.FullName()

	metrics.ObserveSessionStart("success")
	metrics.IncActiveSessions()
	s.logger.Info("work session started",
		slog.Int64("session_id", session.ID),
		slog.Int64("company_id", companyID),
		slog.Int64("truck_id", in.TruckID),
		slog.Int64("employee_id", in.EmployeeID),
	)
	s.audit.LogSessionStart(ctx, companyID, userID, session.ID, "success", employee.FullName())
	return session, nil
}

// End completes an active session. Ending an already-completed session or
// one belonging to another company reports not found.
func (s *SessionService) End(ctx context.Context, companyID, userID, sessionID int64, notes *string) (*domain.WorkSession, error) {
	session, err := s.sessions.End(ctx, companyID, sessionID, notes)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			metrics.ObserveSessionEnd("not_found")
		} else {
			metrics.ObserveSessionEnd("error")
		}
		return nil, err
	}

	metrics.ObserveSessionEnd("success")
	metrics.DecActiveSessions()
	s.logger.Info("work session ended",
		slog.Int64("session_id", session.ID),
		slog.Int64("company_id", companyID),
		slog.Float64("hours", session.Hours),
	)
	s.audit.LogSessionEnd(ctx, companyID, userID, session.ID, "success", session.EmployeeName)
	return session, nil
}

// ListActive returns the company's in-progress sessions, newest first.
func (s *SessionService) ListActive(ctx context.Context, companyID int64) ([]*domain.WorkSession, error) {
	sessions, err := s.sessions.ListActive(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []*domain.WorkSession{}
	}
	return sessions, nil
}

// Pagination describes the page of a history response.
type Pagination struct {
	CurrentPage   int   `json:"current_page"`
	TotalPages    int   `json:"total_pages"`
	TotalSessions int64 `json:"total_sessions"`
	HasNextPage   bool  `json:"has_next_page"`
	HasPrevPage   bool  `json:"has_prev_page"`
}

// HistoryPage is one page of session history.
type HistoryPage struct {
	Sessions   []*domain.WorkSession `json:"sessions"`
	Pagination Pagination            `json:"pagination"`
}

// History returns a filtered, paginated view of the company's sessions.
// Page and limit are clamped rather than rejected.
func (s *SessionService) History(ctx context.Context, companyID int64, filter domain.SessionFilter, page, limit int) (*HistoryPage, error) {
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return nil, domain.Invalid("date_to must not be before date_from")
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}

	sessions, total, err := s.sessions.History(ctx, companyID, filter, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	if sessions == nil {
		sessions = []*domain.WorkSession{}
	}
	return &HistoryPage{
		Sessions: sessions,
		Pagination: Pagination{
			CurrentPage:   page,
			TotalPages:    totalPages,
			TotalSessions: total,
			HasNextPage:   page < totalPages,
			HasPrevPage:   page > 1 && total > 0,
		},
	}, nil
}

// AnalyticsReport is the combined analytics response.
type AnalyticsReport struct {
	Summary    *domain.SessionAnalytics `json:"summary"`
	TruckUsage []*domain.TruckUsage     `json:"truck_usage"`
	Activity   []*domain.ActivityBucket `json:"activity"`
}

// Analytics composes the summary aggregates, per-truck usage and the
// per-period activity series over an optional date window.
func (s *SessionService) Analytics(ctx context.Context, companyID int64, granularity string, from, to *time.Time) (*AnalyticsReport, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, domain.Invalid("date_to must not be before date_from")
	}

	summary, err := s.sessions.Analytics(ctx, companyID, from, to)
	if err != nil {
		return nil, err
	}
	usage, err := s.sessions.TruckUsage(ctx, companyID, from, to)
	if err != nil {
		return nil, err
	}
	activity, err := s.sessions.ActivitySeries(ctx, companyID, granularity, from, to)
	if err != nil {
		return nil, err
	}

	if usage == nil {
		usage = []*domain.TruckUsage{}
	}
	if activity == nil {
		activity = []*domain.ActivityBucket{}
	}
	return &AnalyticsReport{
		Summary:    summary,
		TruckUsage: usage,
		Activity:   activity,
	}, nil
}
