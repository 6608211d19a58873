package service

import (
	"context"
	"log/slog"

	"github.com/yourorg/fleetops/internal/domain"
)

// FleetService serves read access to a company's trucks and employees.
type FleetService struct {
	trucks    domain.TruckRepository
	employees domain.EmployeeRepository
	logger    *slog.Logger
}

// NewFleetService creates a new fleet service
func NewFleetService(trucks domain.TruckRepository, employees domain.EmployeeRepository, logger *slog.Logger) *FleetService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FleetService{trucks: trucks, employees: employees, logger: logger}
}

// ListTrucks returns the company's trucks, optionally filtered by status.
func (s *FleetService) ListTrucks(ctx context.Context, companyID int64, status string) ([]*domain.Truck, error) {
	switch domain.TruckStatus(status) {
	case "", domain.TruckActive, domain.TruckMaintenance, domain.TruckRetired:
	default:
		return nil, domain.Invalid("unknown truck status %q", status)
	}
	trucks, err := s.trucks.ListByCompany(ctx, companyID, status)
	if err != nil {
		return nil, err
	}
	if trucks == nil {
		trucks = []*domain.Truck{}
	}
	return trucks, nil
}

// GetTruck returns one truck within the company.
func (s *FleetService) GetTruck(ctx context.Context, companyID, id int64) (*domain.Truck, error) {
	return s.trucks.GetByID(ctx, companyID, id)
}

// ListEmployees returns the company's employees, optionally filtered by status.
func (s *FleetService) ListEmployees(ctx context.Context, companyID int64, status string) ([]*domain.Employee, error) {
	switch domain.EmployeeStatus(status) {
	case "", domain.EmployeeActive, domain.EmployeeInactive:
	default:
		return nil, domain.Invalid("unknown employee status %q", status)
	}
	employees, err := s.employees.ListByCompany(ctx, companyID, status)
	if err != nil {
		return nil, err
	}
	if employees == nil {
		employees = []*domain.Employee{}
	}
	return employees, nil
}

// GetEmployee returns one employee within the company.
func (s *FleetService) GetEmployee(ctx context.Context, companyID, id int64) (*domain.Employee, error) {
	return s.employees.GetByID(ctx, companyID, id)
}
