package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yourorg/fleetops/internal/domain"
	"github.com/yourorg/fleetops/internal/query"
)

// PostgresEmployeeRepository implements domain.EmployeeRepository using
// PostgreSQL. Every query carries the company predicate; there is no
// unscoped lookup.
type PostgresEmployeeRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresEmployeeRepository creates a new employee repository
func NewPostgresEmployeeRepository(db *sql.DB, logger *slog.Logger) *PostgresEmployeeRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresEmployeeRepository{db: db, logger: logger}
}

const employeeColumns = `id, company_id, employee_no, first_name, last_name, location_id, status, created_at, updated_at`

func scanEmployee(row interface{ Scan(...any) error }) (*domain.Employee, error) {
	e := &domain.Employee{}
	err := row.Scan(
		&e.ID, &e.CompanyID, &e.EmployeeNo, &e.FirstName, &e.LastName,
		&e.LocationID, &e.Status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves an employee within a company. An id from another
// company is reported as not found.
func (r *PostgresEmployeeRepository) GetByID(ctx context.Context, companyID, id int64) (*domain.Employee, error) {
	clause, args := query.ForCompany("company_id", companyID).
		Where("id = ?", id).
		Clause()

	e, err := scanEmployee(r.db.QueryRowContext(ctx,
		"SELECT "+employeeColumns+" FROM employees "+clause, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("employee not found")
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return e, nil
}

// ListByCompany returns a company's employees, optionally filtered by status.
func (r *PostgresEmployeeRepository) ListByCompany(ctx context.Context, companyID int64, status string) ([]*domain.Employee, error) {
	clause, args := query.ForCompany("company_id", companyID).
		WhereString("status = ?", status).
		OrderBy("last_name, first_name").
		Clause()

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+employeeColumns+" FROM employees "+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var out []*domain.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
