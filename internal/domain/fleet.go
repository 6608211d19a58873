package domain

import (
	"context"
	"time"
)

// EmployeeStatus is the lifecycle state of an employee record.
type EmployeeStatus string

const (
	EmployeeActive   EmployeeStatus = "active"
	EmployeeInactive EmployeeStatus = "inactive"
)

// TruckStatus is the operational state of a truck. Only active trucks may
// begin a new work session.
type TruckStatus string

const (
	TruckActive      TruckStatus = "active"
	TruckMaintenance TruckStatus = "maintenance"
	TruckRetired     TruckStatus = "retired"
)

// SessionStatus is the state of a work session. A session is created active
// and transitions exactly once to completed.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// Employee is a labor record owned by one company.
type Employee struct {
	ID         int64          `json:"id"`
	CompanyID  int64          `json:"company_id"`
	EmployeeNo string         `json:"employee_no"`
	FirstName  string         `json:"first_name"`
	LastName   string         `json:"last_name"`
	LocationID *int64         `json:"location_id"`
	Status     EmployeeStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// FullName returns "First Last" as rendered in session payloads.
func (e *Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

// Truck is a vehicle owned by one company.
type Truck struct {
	ID           int64       `json:"id"`
	CompanyID    int64       `json:"company_id"`
	TruckNumber  string      `json:"truck_number"`
	LicensePlate string      `json:"license_plate"`
	Status       TruckStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// WorkSession records an employee operating a truck between a start and an
// end time. At most one session per employee may be active at any instant;
// the work_sessions partial unique index is the source of truth for that.
type WorkSession struct {
	ID         int64
	TruckID    int64
	EmployeeID int64
	StartedBy  int64 // user who opened the session
	StartTime  time.Time
	EndTime    *time.Time
	Status     SessionStatus
	Notes      string

	// Join annotations for API payloads.
	TruckNumber   string
	LicensePlate  string
	EmployeeNo    string
	EmployeeName  string
	StartedByName string
	Hours         float64 // elapsed if active, total duration if completed
}

// SessionFilter narrows history queries. Nil fields contribute nothing.
type SessionFilter struct {
	TruckID    *int64
	EmployeeID *int64
	DateFrom   *time.Time
	DateTo     *time.Time
}

// SessionAnalytics aggregates a company's sessions over an optional window.
type SessionAnalytics struct {
	TotalSessions     int64   `json:"total_sessions"`
	ActiveSessions    int64   `json:"active_sessions"`
	CompletedSessions int64   `json:"completed_sessions"`
	AvgSessionHours   float64 `json:"avg_session_hours"`
	TrucksUsed        int64   `json:"trucks_used"`
	EmployeesActive   int64   `json:"employees_active"`
}

// TruckUsage is the per-truck session breakdown in analytics responses.
type TruckUsage struct {
	TruckID        int64   `json:"truck_id"`
	TruckNumber    string  `json:"truck_number"`
	SessionCount   int64   `json:"session_count"`
	AvgHoursPerUse float64 `json:"avg_hours_per_session"`
}

// ActivityBucket is one point of the per-period session-count series.
type ActivityBucket struct {
	Period       string `json:"period"`
	SessionCount int64  `json:"session_count"`
}

// EmployeeRepository defines company-scoped data access for employees.
// Every lookup takes the company id so a caller cannot reach across tenants.
type EmployeeRepository interface {
	GetByID(ctx context.Context, companyID, id int64) (*Employee, error)
	ListByCompany(ctx context.Context, companyID int64, status string) ([]*Employee, error)
}

// TruckRepository defines company-scoped data access for trucks.
type TruckRepository interface {
	GetByID(ctx context.Context, companyID, id int64) (*Truck, error)
	ListByCompany(ctx context.Context, companyID int64, status string) ([]*Truck, error)
}

// OverdueSession is a watchdog finding: a session still active past the
// configured maximum shift length.
type OverdueSession struct {
	SessionID    int64
	CompanyID    int64
	TruckNumber  string
	EmployeeName string
	StartTime    time.Time
	Hours        float64
}

// SessionRepository defines data access for work sessions. Start relies on
// the storage-level uniqueness invariant: inserting a second active session
// for an employee fails with a conflict, regardless of what any preceding
// check observed.
type SessionRepository interface {
	Start(ctx context.Context, session *WorkSession) error
	// End completes the session identified by id if it is active and its
	// truck belongs to companyID. Returns a not-found error otherwise,
	// including when the session is already completed or in another company.
	End(ctx context.Context, companyID, id int64, notes *string) (*WorkSession, error)
	ActiveByEmployee(ctx context.Context, companyID, employeeID int64) (*WorkSession, error)
	ListActive(ctx context.Context, companyID int64) ([]*WorkSession, error)
	History(ctx context.Context, companyID int64, filter SessionFilter, limit, offset int) ([]*WorkSession, int64, error)
	Analytics(ctx context.Context, companyID int64, from, to *time.Time) (*SessionAnalytics, error)
	TruckUsage(ctx context.Context, companyID int64, from, to *time.Time) ([]*TruckUsage, error)
	ActivitySeries(ctx context.Context, companyID int64, granularity string, from, to *time.Time) ([]*ActivityBucket, error)
	// Overdue lists sessions across all companies that started before the
	// cutoff and are still active. Used only by the watchdog.
	Overdue(ctx context.Context, cutoff time.Time) ([]*OverdueSession, error)
	// CountActive counts active sessions across all companies.
	CountActive(ctx context.Context) (int64, error)
}
