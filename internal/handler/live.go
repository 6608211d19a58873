package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yourorg/fleetops/internal/domain"
	"github.com/yourorg/fleetops/internal/security/auth"
	"github.com/yourorg/fleetops/internal/service"
)

// LiveHandler streams a company's active sessions over a WebSocket. The
// client receives a fresh snapshot on connect and then on every tick.
type LiveHandler struct {
	sessionService *service.SessionService
	tokens         *auth.TokenManager
	users          domain.UserRepository
	logger         *slog.Logger
	allowedOrigins []string
	interval       time.Duration
}

// NewLiveHandler creates a new live sessions handler
func NewLiveHandler(
	sessionService *service.SessionService,
	tokens *auth.TokenManager,
	users domain.UserRepository,
	logger *slog.Logger,
	allowedOrigins []string,
) *LiveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveHandler{
		sessionService: sessionService,
		tokens:         tokens,
		users:          users,
		logger:         logger,
		allowedOrigins: allowedOrigins,
		interval:       5 * time.Second,
	}
}

// upgrader is initialized per-request to use instance's allowed origins
func (h *LiveHandler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Allow requests with no origin (e.g., non-browser clients)
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /ws/sessions?token=...
// Browsers cannot set an Authorization header on a WebSocket handshake, so
// the token rides in the query string and is verified before the upgrade.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		writeError(w, h.logger, domain.Unauthenticated("missing token"))
		return
	}

	claims, err := h.tokens.ValidateToken(tokenString)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			writeError(w, h.logger, domain.Unauthenticated("token expired"))
			return
		}
		writeError(w, h.logger, domain.Unauthenticated("invalid token"))
		return
	}

	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil || !user.IsActive {
		writeError(w, h.logger, domain.Unauthenticated("invalid or expired token"))
		return
	}
	companyID := user.CompanyID

	upgrader := h.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	h.logger.Debug("live sessions stream opened",
		slog.Int64("company_id", companyID),
		slog.Int64("user_id", user.ID),
	)

	// Drain client frames so close messages are processed.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	pinger := time.NewTicker(15 * time.Second)
	defer pinger.Stop()

	if err := h.pushSnapshot(r, ws, companyID); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-pinger.C:
			_ = ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		case <-ticker.C:
			if err := h.pushSnapshot(r, ws, companyID); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Debug("websocket closed", slog.Int64("company_id", companyID))
				}
				return
			}
		}
	}
}

func (h *LiveHandler) pushSnapshot(r *http.Request, ws *websocket.Conn, companyID int64) error {
	sessions, err := h.sessionService.ListActive(r.Context(), companyID)
	if err != nil {
		h.logger.Error("failed to load active sessions for stream",
			slog.Int64("company_id", companyID),
			slog.String("error", err.Error()),
		)
		return err
	}

	payload := make([]map[string]any, 0, len(sessions))
	for _, s := range sessions {
		payload = append(payload, sessionPayload(s))
	}
	return ws.WriteJSON(map[string]any{
		"type":     "active_sessions",
		"sessions": payload,
		"count":    len(payload),
		"at":       time.Now().UTC(),
	})
}
