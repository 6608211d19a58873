package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/fleetops/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps a domain error kind to its HTTP status. Server-side
// failures are logged with their cause and answered with a generic message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindAuthentication:
		status = http.StatusUnauthorized
	case domain.KindAuthorization:
		status = http.StatusForbidden
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindNotFound:
		status = http.StatusNotFound
	}

	msg := domain.MessageOf(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()))
		msg = "internal server error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// pathID parses the {id} segment of the matched route.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := parseInt64(raw)
	if err != nil || id <= 0 {
		return 0, domain.Invalid("invalid id %q", raw)
	}
	return id, nil
}
