package handler

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"

	"github.com/yourorg/fleetops/internal/domain"
	"github.com/yourorg/fleetops/internal/security/middleware"
	"github.com/yourorg/fleetops/internal/service"
)

// SessionHandler handles work-session endpoints
type SessionHandler struct {
	sessionService *service.SessionService
	logger         *slog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService *service.SessionService, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		sessionService: sessionService,
		logger:         logger,
	}
}

// Start handles POST /api/truck-sessions/start
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	ac, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		writeError(w, h.logger, domain.Unauthenticated("authentication required"))
		return
	}

	var req service.StartInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domain.Invalid("invalid request body"))
		return
	}

	session, err := h.sessionService.Start(r.Context(), ac.CompanyID, ac.UserID, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionPayload(session))
}

// EndRequest represents a session end request. Notes are applied only when
// the field is present.
type EndRequest struct {
	Notes *string `json:"notes"`
}

// End handles PUT /api/truck-sessions/{id}/end
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
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

	var req EndRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, h.logger, domain.Invalid("invalid request body"))
			return
		}
	}

	session, err := h.sessionService.End(r.Context(), ac.CompanyID, ac.UserID, id, req.Notes)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

// Active handles GET /api/truck-sessions/active
func (h *SessionHandler) Active(w http.ResponseWriter, r *http.Request) {
	ac, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		writeError(w, h.logger, domain.Unauthenticated("authentication required"))
		return
	}

	sessions, err := h.sessionService.ListActive(r.Context(), ac.CompanyID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	payload := make([]map[string]any, 0, len(sessions))
	for _, s := range sessions {
		payload = append(payload, sessionPayload(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": payload, "count": len(payload)})
}

// History handles GET /api/truck-sessions/history
func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	ac, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		writeError(w, h.logger, domain.Unauthenticated("authentication required"))
		return
	}

	q := r.URL.Query()
	filter := domain.SessionFilter{}
	var err error
	if filter.TruckID, err = queryOptionalInt64(q, "truck_id"); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if filter.EmployeeID, err = queryOptionalInt64(q, "employee_id"); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if filter.DateFrom, err = queryOptionalTime(q, "date_from", false); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if filter.DateTo, err = queryOptionalTime(q, "date_to", true); err != nil {
		writeError(w, h.logger, err)
		return
	}
	page, err := queryInt(q, "page", 1)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit, err := queryInt(q, "limit", 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.sessionService.History(r.Context(), ac.CompanyID, filter, page, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	payload := make([]map[string]any, 0, len(result.Sessions))
	for _, s := range result.Sessions {
		payload = append(payload, sessionPayload(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions":   payload,
		"pagination": result.Pagination,
	})
}

// Analytics handles GET /api/truck-sessions/analytics
func (h *SessionHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	ac, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		writeError(w, h.logger, domain.Unauthenticated("authentication required"))
		return
	}

	q := r.URL.Query()
	from, err := queryOptionalTime(q, "date_from", false)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	to, err := queryOptionalTime(q, "date_to", true)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	report, err := h.sessionService.Analytics(r.Context(), ac.CompanyID, q.Get("group_by"), from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// sessionPayload flattens a session with its join annotations into the
// wire shape shared by every session endpoint.
func sessionPayload(s *domain.WorkSession) map[string]any {
	p := map[string]any{
		"id":            s.ID,
		"truck_id":      s.TruckID,
		"employee_id":   s.EmployeeID,
		"truck_number":  s.TruckNumber,
		"license_plate": s.LicensePlate,
		"employee_no":   s.EmployeeNo,
		"employee_name": s.EmployeeName,
		"status":        s.Status,
		"start_time":    s.StartTime,
		"end_time":      s.EndTime,
		"notes":         s.Notes,
		"hours":         roundHours(s.Hours),
	}
	if s.StartedByName != "" {
		p["started_by"] = s.StartedByName
	}
	return p
}

// roundHours keeps hour figures at two decimals on the wire.
func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}
