package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/fleetops/internal/domain"
	"github.com/yourorg/fleetops/internal/security/middleware"
	"github.com/yourorg/fleetops/internal/service"
)

// FleetHandler handles truck and employee read endpoints
type FleetHandler struct {
	fleetService *service.FleetService
	logger       *slog.Logger
}

// NewFleetHandler creates a new fleet handler
func NewFleetHandler(fleetService *service.FleetService, logger *slog.Logger) *FleetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FleetHandler{
		fleetService: fleetService,
		logger:       logger,
	}
}

// ListTrucks handles GET /api/trucks
func (h *FleetHandler) ListTrucks(w http.ResponseWriter, r *http.Request) {
	ac, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		writeError(w, h.logger, domain.Unauthenticated("authentication required"))
		return
	}

	trucks, err := h.fleetService.ListTrucks(r.Context(), ac.CompanyID, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trucks": trucks, "count": len(trucks)})
}

// GetTruck handles GET /api/trucks/{id}
func (h *FleetHandler) GetTruck(w http.ResponseWriter, r *http.Request) {
	ac, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		writeError(w, h.logger, domain.Unauthenticated("authentication required"))
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	truck, err := h.fleetService.GetTruck(r.Context(), ac.CompanyID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, truck)
}

// ListEmployees handles GET /api/employees
func (h *FleetHandler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	ac, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		writeError(w, h.logger, domain.Unauthenticated("authentication required"))
		return
	}

	employees, err := h.fleetService.ListEmployees(r.Context(), ac.CompanyID, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"employees": employees, "count": len(employees)})
}

// GetEmployee handles GET /api/employees/{id}
func (h *FleetHandler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	ac, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		writeError(w, h.logger, domain.Unauthenticated("authentication required"))
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	employee, err := h.fleetService.GetEmployee(r.Context(), ac.CompanyID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, employee)
}
