package domain

import (
	"context"
	"time"
)

// Role identifies a principal's permission level within its company.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleOperator Role = "operator"
)

// User is a login identity. It is distinct from an Employee: a User
// authenticates and acts on behalf of the company, an Employee is the labor
// record that gets assigned to a truck session.
type User struct {
	ID           int64      `json:"id"`
	CompanyID    int64      `json:"company_id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Joined company attributes, populated on authenticated reads.
	CompanyName  string `json:"company_name"`
	BusinessType string `json:"business_type"`
}

// UserRepository defines data access for users
type UserRepository interface {
	// CreateWithCompany creates the company and its first admin user in a
	// single transaction. Registration is the only path that creates a company.
	CreateWithCompany(ctx context.Context, company *Company, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	// GetByLogin resolves an active user by username or email.
	GetByLogin(ctx context.Context, login string) (*User, error)
	TouchLastLogin(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	Deactivate(ctx context.Context, id int64) error
}

// Company is a tenant. Every employee, truck, and work session belongs to
// exactly one company, set at creation and never reassigned.
type Company struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	BusinessType string    `json:"business_type"`
	State        string    `json:"state"`
	ContactEmail string    `json:"contact_email"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CompanyRepository defines data access for companies
type CompanyRepository interface {
	GetByID(ctx context.Context, id int64) (*Company, error)
}
