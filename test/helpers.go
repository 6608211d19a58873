package test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yourorg/fleetops/internal/domain"
	"github.com/yourorg/fleetops/internal/handler"
	"github.com/yourorg/fleetops/internal/infrastructure/logger"
	"github.com/yourorg/fleetops/internal/security"
	"github.com/yourorg/fleetops/internal/security/auth"
	"github.com/yourorg/fleetops/internal/security/middleware"
	"github.com/yourorg/fleetops/internal/service"
)

// TestServerHelper creates a test HTTP server without needing a running backend
type TestServerHelper struct {
	Server *httptest.Server
	Logger *slog.Logger
	Mux    *http.ServeMux
}

func NewTestServer(t *testing.T) *TestServerHelper {
	logger := logger.NewLogger("debug")
	mux := http.NewServeMux()

	// Setup basic health endpoints
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	// Setup metrics endpoint
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("# HELP test_metric Test metric\n# TYPE test_metric counter\n"))
	})

	server := httptest.NewServer(mux)

	return &TestServerHelper{
		Server: server,
		Logger: logger,
		Mux:    mux,
	}
}

func (h *TestServerHelper) Close() {
	h.Server.Close()
}

func (h *TestServerHelper) URL() string {
	return h.Server.URL
}

// AddAuthHandler adds auth endpoints to the test server. Routes past
// register and login require a bearer token, same as the real server.
func (h *TestServerHelper) AddAuthHandler(authService *service.AuthService, tm *auth.TokenManager, users domain.UserRepository) {
	authHandler := handler.NewAuthHandler(authService, security.NewAuthorizationService(h.Logger), h.Logger)
	authn := middleware.Authenticate(tm, users, h.Logger)

	h.Mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	h.Mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	h.Mux.Handle("GET /api/auth/profile", authn(http.HandlerFunc(authHandler.Profile)))
	h.Mux.Handle("PUT /api/auth/password", authn(http.HandlerFunc(authHandler.ChangePassword)))
}

// AddSessionHandler adds work-session endpoints behind authentication
func (h *TestServerHelper) AddSessionHandler(sessionService *service.SessionService, tm *auth.TokenManager, users domain.UserRepository) {
	sessionHandler := handler.NewSessionHandler(sessionService, h.Logger)
	authn := middleware.Authenticate(tm, users, h.Logger)

	h.Mux.Handle("POST /api/truck-sessions/start", authn(http.HandlerFunc(sessionHandler.Start)))
	h.Mux.Handle("PUT /api/truck-sessions/{id}/end", authn(http.HandlerFunc(sessionHandler.End)))
	h.Mux.Handle("GET /api/truck-sessions/active", authn(http.HandlerFunc(sessionHandler.Active)))
	h.Mux.Handle("GET /api/truck-sessions/history", authn(http.HandlerFunc(sessionHandler.History)))
}

// AssertStatusCode helper function
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	if resp.StatusCode != expected {
		t.Errorf("Expected status %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType helper function
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	if ct := resp.Header.Get("Content-Type"); ct != expected {
		t.Errorf("Expected Content-Type %s, got %s", expected, ct)
	}
}
