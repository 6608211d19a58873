package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/yourorg/fleetops/internal/domain"
)

// isUniqueViolation reports whether err is a Postgres unique violation,
// optionally on a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return constraint == "" || pqErr.Constraint == constraint
	}
	return false
}

// PostgresUserRepository implements domain.UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresUserRepository creates a new user repository
func NewPostgresUserRepository(db *sql.DB, logger *slog.Logger) *PostgresUserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserRepository{db: db, logger: logger}
}

// CreateWithCompany creates the company and its first admin user in one
// transaction, so registration never leaves an orphaned company behind.
func (r *PostgresUserRepository) CreateWithCompany(ctx context.Context, company *domain.Company, user *domain.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO companies (name, business_type, state, contact_email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, company.Name, company.BusinessType, company.State, company.ContactEmail).Scan(
		&company.ID, &company.CreatedAt, &company.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}

	user.CompanyID = company.ID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (company_id, username, email, password_hash, first_name, last_name, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, is_active, created_at, updated_at
	`, user.CompanyID, user.Username, user.Email, user.PasswordHash,
		user.FirstName, user.LastName, user.Role).Scan(
		&user.ID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return domain.Conflict("username or email already exists")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit registration: %w", err)
	}
	user.CompanyName = company.Name
	user.BusinessType = company.BusinessType
	return nil
}

// GetByID retrieves a user by ID with its company attributes joined in.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user := &domain.User{}

	query := `
		SELECT u.id, u.company_id, u.username, u.email, u.password_hash,
		       u.first_name, u.last_name, u.role, u.is_active, u.last_login,
		       u.created_at, u.updated_at, c.name, c.business_type
		FROM users u
		JOIN companies c ON u.company_id = c.id
		WHERE u.id = $1
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.CompanyID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.IsActive,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.CompanyName,
		&user.BusinessType,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("user not found")
		}
		r.logger.Error("failed to get user by id",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetByLogin resolves an active user by username or email.
func (r *PostgresUserRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	user := &domain.User{}

	query := `
		SELECT u.id, u.company_id, u.username, u.email, u.password_hash,
		       u.first_name, u.last_name, u.role, u.is_active, u.last_login,
		       u.created_at, u.updated_at, c.name, c.business_type
		FROM users u
		JOIN companies c ON u.company_id = c.id
		WHERE (u.username = $1 OR u.email = $1) AND u.is_active = true
	`

	err := r.db.QueryRowContext(ctx, query, login).Scan(
		&user.ID,
		&user.CompanyID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&user.IsActive,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.CompanyName,
		&user.BusinessType,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("user not found")
		}
		return nil, fmt.Errorf("failed to get user by login: %w", err)
	}

	return user, nil
}

// TouchLastLogin stamps last_login on a successful authentication.
func (r *PostgresUserRepository) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// UpdatePassword replaces a user's password hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2
	`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.NotFound("user not found")
	}
	return nil
}

// Deactivate soft-deletes a user. Rows are never hard-deleted so the audit
// history stays intact; authentication rejects inactive users on the next
// request.
func (r *PostgresUserRepository) Deactivate(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_active = false, updated_at = CURRENT_TIMESTAMP WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.NotFound("user not found")
	}
	return nil
}
