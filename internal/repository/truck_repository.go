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

// PostgresTruckRepository implements domain.TruckRepository using PostgreSQL.
type PostgresTruckRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresTruckRepository creates a new truck repository
func NewPostgresTruckRepository(db *sql.DB, logger *slog.Logger) *PostgresTruckRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTruckRepository{db: db, logger: logger}
}

const truckColumns = `id, company_id, truck_number, license_plate, status, created_at, updated_at`

func scanTruck(row interface{ Scan(...any) error }) (*domain.Truck, error) {
	t := &domain.Truck{}
	err := row.Scan(
		&t.ID, &t.CompanyID, &t.TruckNumber, &t.LicensePlate,
		&t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetByID retrieves a truck within a company.
func (r *PostgresTruckRepository) GetByID(ctx context.Context, companyID, id int64) (*domain.Truck, error) {
	clause, args := query.ForCompany("company_id", companyID).
		Where("id = ?", id).
		Clause()

	t, err := scanTruck(r.db.QueryRowContext(ctx,
		"SELECT "+truckColumns+" FROM trucks "+clause, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("truck not found")
		}
		return nil, fmt.Errorf("failed to get truck: %w", err)
	}
	return t, nil
}

// ListByCompany returns a company's trucks, optionally filtered by status.
func (r *PostgresTruckRepository) ListByCompany(ctx context.Context, companyID int64, status string) ([]*domain.Truck, error) {
	clause, args := query.ForCompany("company_id", companyID).
		WhereString("status = ?", status).
		OrderBy("truck_number").
		Clause()

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+truckColumns+" FROM trucks "+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list trucks: %w", err)
	}
	defer rows.Close()

	var out []*domain.Truck
	for rows.Next() {
		t, err := scanTruck(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan truck: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
