package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yourorg/fleetops/internal/domain"
	"github.com/yourorg/fleetops/internal/security"
	"github.com/yourorg/fleetops/internal/security/audit"
	"github.com/yourorg/fleetops/internal/security/auth"
	"github.com/yourorg/fleetops/internal/security/ratelimit"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubUserRepo struct {
	users map[int64]*domain.User
}

func (s *stubUserRepo) CreateWithCompany(ctx context.Context, c *domain.Company, u *domain.User) error {
	return nil
}
func (s *stubUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, domain.NotFound("user not found")
}
func (s *stubUserRepo) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	return nil, domain.NotFound("user not found")
}
func (s *stubUserRepo) TouchLastLogin(ctx context.Context, id int64) error           { return nil }
func (s *stubUserRepo) UpdatePassword(ctx context.Context, id int64, h string) error { return nil }
func (s *stubUserRepo) Deactivate(ctx context.Context, id int64) error               { return nil }

func okHandler(t *testing.T, got **AuthContext) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			ac, ok := GetAuthContext(r.Context())
			if !ok {
				t.Fatal("auth context missing in handler")
			}
			*got = ac
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticate(t *testing.T) {
	tm := auth.NewTokenManager("secret", "fleetops-test", time.Hour)
	repo := &stubUserRepo{users: map[int64]*domain.User{
		42: {ID: 42, CompanyID: 7, Username: "dana", Role: domain.RoleManager, IsActive: true},
	}}

	var got *AuthContext
	h := Authenticate(tm, repo, discardLogger())(okHandler(t, &got))

	token, err := tm.GenerateToken(42, 7, "manager", "dana")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	// Valid token passes and carries the context.
	req := httptest.NewRequest(http.MethodGet, "/api/trucks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got == nil || got.UserID != 42 || got.CompanyID != 7 || got.Role != domain.RoleManager {
		t.Fatalf("unexpected auth context %+v", got)
	}

	// No header. The rejection body is JSON like every other response.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trucks", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json on 401, got %q", ct)
	}

	// Garbage token.
	req = httptest.NewRequest(http.MethodGet, "/api/trucks", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
}

func TestAuthenticateCompanyComesFromUserRow(t *testing.T) {
	tm := auth.NewTokenManager("secret", "fleetops-test", time.Hour)
	// Token claims company 999 but the user record says company 7.
	repo := &stubUserRepo{users: map[int64]*domain.User{
		42: {ID: 42, CompanyID: 7, Username: "dana", Role: domain.RoleOperator, IsActive: true},
	}}

	var got *AuthContext
	h := Authenticate(tm, repo, discardLogger())(okHandler(t, &got))

	token, _ := tm.GenerateToken(42, 999, "operator", "dana")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.CompanyID != 7 {
		t.Fatalf("company id must come from the user record, got %d", got.CompanyID)
	}
}

func TestAuthenticateRejectsDeactivatedUser(t *testing.T) {
	tm := auth.NewTokenManager("secret", "fleetops-test", time.Hour)
	repo := &stubUserRepo{users: map[int64]*domain.User{
		42: {ID: 42, CompanyID: 7, Username: "dana", Role: domain.RoleAdmin, IsActive: false},
	}}
	h := Authenticate(tm, repo, discardLogger())(okHandler(t, nil))

	token, _ := tm.GenerateToken(42, 7, "admin", "dana")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("deactivated user must be rejected, got %d", rec.Code)
	}
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	expired := auth.NewTokenManager("secret", "fleetops-test", -time.Minute)
	verifier := auth.NewTokenManager("secret", "fleetops-test", time.Hour)
	repo := &stubUserRepo{users: map[int64]*domain.User{
		42: {ID: 42, CompanyID: 7, IsActive: true},
	}}
	h := Authenticate(verifier, repo, discardLogger())(okHandler(t, nil))

	token, _ := expired.GenerateToken(42, 7, "admin", "dana")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}
}

func withContext(r *http.Request, ac *AuthContext) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), authContextKey{}, ac))
}

func TestTenantScope(t *testing.T) {
	h := TenantScope(security.NewAuthorizationService(discardLogger()), discardLogger())(okHandler(t, nil))
	ac := &AuthContext{UserID: 1, CompanyID: 7, Role: domain.RoleAdmin}

	cases := []struct {
		name string
		url  string
		want int
	}{
		{"no param", "/api/trucks", http.StatusOK},
		{"matching param", "/api/trucks?company_id=7", http.StatusOK},
		{"mismatched param", "/api/trucks?company_id=8", http.StatusForbidden},
		{"mismatched camel param", "/api/trucks?companyId=8", http.StatusForbidden},
		{"non-numeric param", "/api/trucks?company_id=abc", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := withContext(httptest.NewRequest(http.MethodGet, tc.url, nil), ac)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
			if tc.want == http.StatusForbidden {
				if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
					t.Fatalf("expected application/json on 403, got %q", ct)
				}
			}
		})
	}

	// No auth context at all.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trucks", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without context, got %d", rec.Code)
	}
}

func TestRequirePermission(t *testing.T) {
	authz := security.NewAuthorizationService(discardLogger())
	auditLog := audit.NewLogger(discardLogger())
	h := RequirePermission(authz, auditLog, security.PermViewAnalytics)(okHandler(t, nil))

	for role, want := range map[domain.Role]int{
		domain.RoleAdmin:    http.StatusOK,
		domain.RoleManager:  http.StatusOK,
		domain.RoleOperator: http.StatusForbidden,
	} {
		req := withContext(httptest.NewRequest(http.MethodGet, "/", nil), &AuthContext{UserID: 1, CompanyID: 7, Role: role})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("role %s: expected %d, got %d", role, want, rec.Code)
		}
		if want == http.StatusForbidden {
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected application/json on denial, got %q", ct)
			}
		}
	}

	// Every role may view sessions.
	viewSessions := RequirePermission(authz, auditLog, security.PermViewSessions)(okHandler(t, nil))
	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleManager, domain.RoleOperator} {
		req := withContext(httptest.NewRequest(http.MethodGet, "/", nil), &AuthContext{UserID: 1, CompanyID: 7, Role: role})
		rec := httptest.NewRecorder()
		viewSessions.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("role %s: expected 200 for view_sessions, got %d", role, rec.Code)
		}
	}

	// No auth context at all.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without context, got %d", rec.Code)
	}
}

type fakeCounter struct {
	counts map[string]int64
}

func (f *fakeCounter) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[key]++
	return f.counts[key], nil
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewLimiter(&fakeCounter{}, 2, time.Minute, discardLogger())
	h := RateLimit(limiter, discardLogger())(okHandler(t, nil))
	ac := &AuthContext{UserID: 1, CompanyID: 7, Role: domain.RoleAdmin}

	for i := 0; i < 2; i++ {
		req := withContext(httptest.NewRequest(http.MethodGet, "/", nil), ac)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	req := withContext(httptest.NewRequest(http.MethodGet, "/", nil), ac)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 over the limit, got %d", rec.Code)
	}

	// A different company has its own window.
	other := withContext(httptest.NewRequest(http.MethodGet, "/", nil), &AuthContext{UserID: 2, CompanyID: 8, Role: domain.RoleAdmin})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for other company, got %d", rec.Code)
	}
}
