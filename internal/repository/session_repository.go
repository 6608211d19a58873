package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/fleetops/internal/domain"
	"github.com/yourorg/fleetops/internal/query"
)

// PostgresSessionRepository implements domain.SessionRepository using
// PostgreSQL. Sessions are always reached through their truck's company, so
// a session id from another company behaves exactly like a missing one.
type PostgresSessionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSessionRepository creates a new session repository
func NewPostgresSessionRepository(db *sql.DB, logger *slog.Logger) *PostgresSessionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSessionRepository{db: db, logger: logger}
}

// hoursExpr is elapsed hours for active sessions and total duration for
// completed ones, matching the annotation on every session payload.
const hoursExpr = `CASE
		WHEN ws.end_time IS NOT NULL
		THEN EXTRACT(EPOCH FROM (ws.end_time - ws.start_time))/3600
		ELSE EXTRACT(EPOCH FROM (CURRENT_TIMESTAMP - ws.start_time))/3600
	END`

const sessionSelect = `
	SELECT ws.id, ws.truck_id, ws.employee_id, ws.started_by,
	       ws.start_time, ws.end_time, ws.status, ws.notes,
	       t.truck_number, t.license_plate,
	       e.employee_no, e.first_name || ' ' || e.last_name,
	       COALESCE(u.username, ''),
	       ` + hoursExpr + `
	FROM work_sessions ws
	JOIN trucks t ON ws.truck_id = t.id
	JOIN employees e ON ws.employee_id = e.id
	LEFT JOIN users u ON ws.started_by = u.id
`

func scanSession(row interface{ Scan(...any) error }) (*domain.WorkSession, error) {
	ws := &domain.WorkSession{}
	var startedBy sql.NullInt64
	err := row.Scan(
		&ws.ID, &ws.TruckID, &ws.EmployeeID, &startedBy,
		&ws.StartTime, &ws.EndTime, &ws.Status, &ws.Notes,
		&ws.TruckNumber, &ws.LicensePlate,
		&ws.EmployeeNo, &ws.EmployeeName,
		&ws.StartedByName,
		&ws.Hours,
	)
	if err != nil {
		return nil, err
	}
	ws.StartedBy = startedBy.Int64
	return ws, nil
}

// Start inserts a new active session. The partial unique index on
// (employee_id) WHERE status = 'active' is the authority for the
// one-active-session invariant: under concurrent starts every loser gets a
// unique violation here, which is surfaced as a conflict.
func (r *PostgresSessionRepository) Start(ctx context.Context, session *domain.WorkSession) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO work_sessions (truck_id, employee_id, started_by, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING id, start_time, status
	`, session.TruckID, session.EmployeeID, session.StartedBy, session.Notes).Scan(
		&session.ID, &session.StartTime, &session.Status,
	)
	if err != nil {
		if isUniqueViolation(err, "uq_work_sessions_one_active") {
			return domain.Conflict("employee already has an active truck session")
		}
		r.logger.Error("failed to start session",
			slog.Int64("truck_id", session.TruckID),
			slog.Int64("employee_id", session.EmployeeID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to start session: %w", err)
	}
	return nil
}

// End completes an active session in one atomic statement. The company
// predicate rides on the truck join; a completed session or one from
// another company matches zero rows and reports not found, so end is
// effective at most once.
func (r *PostgresSessionRepository) End(ctx context.Context, companyID, id int64, notes *string) (*domain.WorkSession, error) {
	ws := &domain.WorkSession{}
	var startedBy sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		UPDATE work_sessions ws
		SET end_time = CURRENT_TIMESTAMP,
		    status = 'completed',
		    notes = COALESCE($3, ws.notes)
		FROM trucks t, employees e
		WHERE ws.id = $1
		  AND ws.truck_id = t.id
		  AND ws.employee_id = e.id
		  AND t.company_id = $2
		  AND ws.status = 'active'
		RETURNING ws.id, ws.truck_id, ws.employee_id, ws.started_by,
		          ws.start_time, ws.end_time, ws.status, ws.notes,
		          t.truck_number, t.license_plate,
		          e.employee_no, e.first_name || ' ' || e.last_name,
		          EXTRACT(EPOCH FROM (ws.end_time - ws.start_time))/3600
	`, id, companyID, notes).Scan(
		&ws.ID, &ws.TruckID, &ws.EmployeeID, &startedBy,
		&ws.StartTime, &ws.EndTime, &ws.Status, &ws.Notes,
		&ws.TruckNumber, &ws.LicensePlate,
		&ws.EmployeeNo, &ws.EmployeeName,
		&ws.Hours,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("active session not found")
		}
		return nil, fmt.Errorf("failed to end session: %w", err)
	}
	ws.StartedBy = startedBy.Int64
	return ws, nil
}

// ActiveByEmployee returns the employee's active session if one exists.
// Used for the friendly pre-check before an insert; the unique index
// remains the source of truth under races.
func (r *PostgresSessionRepository) ActiveByEmployee(ctx context.Context, companyID, employeeID int64) (*domain.WorkSession, error) {
	clause, args := query.ForCompany("t.company_id", companyID).
		Where("ws.employee_id = ?", employeeID).
		Where("ws.status = ?", string(domain.SessionActive)).
		Clause()

	ws, err := scanSession(r.db.QueryRowContext(ctx, sessionSelect+clause, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("no active session for employee")
		}
		return nil, fmt.Errorf("failed to query active session: %w", err)
	}
	return ws, nil
}

// ListActive returns a company's active sessions, newest first.
func (r *PostgresSessionRepository) ListActive(ctx context.Context, companyID int64) ([]*domain.WorkSession, error) {
	clause, args := query.ForCompany("t.company_id", companyID).
		Where("ws.status = ?", string(domain.SessionActive)).
		OrderBy("ws.start_time DESC").
		Clause()

	return r.querySessions(ctx, sessionSelect+clause, args)
}

// History returns a page of sessions matching the filter plus the total
// matching count, ordered newest start first.
func (r *PostgresSessionRepository) History(ctx context.Context, companyID int64, filter domain.SessionFilter, limit, offset int) ([]*domain.WorkSession, int64, error) {
	b := query.ForCompany("t.company_id", companyID).
		WhereInt64("t.id = ?", filter.TruckID).
		WhereInt64("e.id = ?", filter.EmployeeID).
		WhereTime("ws.start_time >= ?", filter.DateFrom).
		WhereTime("ws.start_time <= ?", filter.DateTo)

	countClause, countArgs := b.CountClause()
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM work_sessions ws
		JOIN trucks t ON ws.truck_id = t.id
		JOIN employees e ON ws.employee_id = e.id
		`+countClause, countArgs...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	clause, args := b.
		OrderBy("ws.start_time DESC").
		Paginate(limit, offset).
		Clause()

	sessions, err := r.querySessions(ctx, sessionSelect+clause, args)
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// Analytics aggregates a company's sessions over an optional window.
func (r *PostgresSessionRepository) Analytics(ctx context.Context, companyID int64, from, to *time.Time) (*domain.SessionAnalytics, error) {
	clause, args := query.ForCompany("t.company_id", companyID).
		WhereTime("ws.start_time >= ?", from).
		WhereTime("ws.start_time <= ?", to).
		Clause()

	a := &domain.SessionAnalytics{}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(CASE WHEN ws.status = 'active' THEN 1 END),
		       COUNT(CASE WHEN ws.status = 'completed' THEN 1 END),
		       COALESCE(AVG(CASE
		           WHEN ws.end_time IS NOT NULL
		           THEN EXTRACT(EPOCH FROM (ws.end_time - ws.start_time))/3600
		       END), 0),
		       COUNT(DISTINCT ws.truck_id),
		       COUNT(DISTINCT ws.employee_id)
		FROM work_sessions ws
		JOIN trucks t ON ws.truck_id = t.id
		`+clause, args...).Scan(
		&a.TotalSessions,
		&a.ActiveSessions,
		&a.CompletedSessions,
		&a.AvgSessionHours,
		&a.TrucksUsed,
		&a.EmployeesActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sessions: %w", err)
	}
	return a, nil
}

// TruckUsage returns per-truck session counts, busiest trucks first.
// Trucks with no sessions in the window still appear with a zero count.
func (r *PostgresSessionRepository) TruckUsage(ctx context.Context, companyID int64, from, to *time.Time) ([]*domain.TruckUsage, error) {
	q, args := truckUsageQuery(companyID, from, to)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query truck usage: %w", err)
	}
	defer rows.Close()

	var out []*domain.TruckUsage
	for rows.Next() {
		u := &domain.TruckUsage{}
		if err := rows.Scan(&u.TruckID, &u.TruckNumber, &u.SessionCount, &u.AvgHoursPerUse); err != nil {
			return nil, fmt.Errorf("failed to scan truck usage: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// truckUsageQuery composes the usage aggregate. The date window rides on the
// join condition, not the WHERE clause: a WHERE predicate on ws.start_time
// would filter out the left-joined truck row itself, dropping trucks whose
// sessions all fall outside the window instead of counting them as zero.
func truckUsageQuery(companyID int64, from, to *time.Time) (string, []any) {
	where, args := query.ForCompany("t.company_id", companyID).Clause()

	join := "LEFT JOIN work_sessions ws ON t.id = ws.truck_id"
	next := len(args) + 1
	if from != nil {
		cond, n := query.Numbered(" AND ws.start_time >= ?", next)
		join += cond
		next = n
		args = append(args, *from)
	}
	if to != nil {
		cond, _ := query.Numbered(" AND ws.start_time <= ?", next)
		join += cond
		args = append(args, *to)
	}

	return `
		SELECT t.id, t.truck_number,
		       COUNT(ws.id),
		       COALESCE(AVG(CASE
		           WHEN ws.end_time IS NOT NULL
		           THEN EXTRACT(EPOCH FROM (ws.end_time - ws.start_time))/3600
		       END), 0)
		FROM trucks t
		` + join + `
		` + where + `
		GROUP BY t.id, t.truck_number
		ORDER BY COUNT(ws.id) DESC
	`, args
}

// ActivitySeries buckets session starts by period. The grouping expression
// comes from the closed granularity enum, never from caller input.
func (r *PostgresSessionRepository) ActivitySeries(ctx context.Context, companyID int64, granularity string, from, to *time.Time) ([]*domain.ActivityBucket, error) {
	g, err := query.ParseGranularity(granularity)
	if err != nil {
		return nil, domain.Invalid("%v", err)
	}
	periodExpr := g.PeriodExpr("ws.start_time")

	clause, args := query.ForCompany("t.company_id", companyID).
		WhereTime("ws.start_time >= ?", from).
		WhereTime("ws.start_time <= ?", to).
		Clause()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+periodExpr+` AS period, COUNT(*)
		FROM work_sessions ws
		JOIN trucks t ON ws.truck_id = t.id
		`+clause+`
		GROUP BY period
		ORDER BY period DESC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity series: %w", err)
	}
	defer rows.Close()

	var out []*domain.ActivityBucket
	for rows.Next() {
		b := &domain.ActivityBucket{}
		if err := rows.Scan(&b.Period, &b.SessionCount); err != nil {
			return nil, fmt.Errorf("failed to scan activity bucket: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Overdue lists active sessions that started before the cutoff, across all
// companies. The watchdog reports them; it never completes them.
func (r *PostgresSessionRepository) Overdue(ctx context.Context, cutoff time.Time) ([]*domain.OverdueSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ws.id, t.company_id, t.truck_number,
		       e.first_name || ' ' || e.last_name,
		       ws.start_time,
		       EXTRACT(EPOCH FROM (CURRENT_TIMESTAMP - ws.start_time))/3600
		FROM work_sessions ws
		JOIN trucks t ON ws.truck_id = t.id
		JOIN employees e ON ws.employee_id = e.id
		WHERE ws.status = 'active' AND ws.start_time < $1
		ORDER BY ws.start_time
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.OverdueSession
	for rows.Next() {
		o := &domain.OverdueSession{}
		if err := rows.Scan(&o.SessionID, &o.CompanyID, &o.TruckNumber, &o.EmployeeName, &o.StartTime, &o.Hours); err != nil {
			return nil, fmt.Errorf("failed to scan overdue session: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CountActive counts active sessions across all companies.
func (r *PostgresSessionRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM work_sessions WHERE status = 'active'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return n, nil
}

func (r *PostgresSessionRepository) querySessions(ctx context.Context, q string, args []any) ([]*domain.WorkSession, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.WorkSession
	for rows.Next() {
		ws, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}
