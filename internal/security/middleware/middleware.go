package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/yourorg/fleetops/internal/domain"
	"github.com/yourorg/fleetops/internal/observability/metrics"
	"github.com/yourorg/fleetops/internal/security"
	"github.com/yourorg/fleetops/internal/security/audit"
	"github.com/yourorg/fleetops/internal/security/auth"
	"github.com/yourorg/fleetops/internal/security/ratelimit"
)

type authContextKey struct{}

// AuthContext is the immutable (principal, company, role) triple attached to
// a request after authentication. It is built here and nowhere else; handlers
// cannot fabricate a company id from client input.
type AuthContext struct {
	UserID    int64
	CompanyID int64
	Role      domain.Role
	Username  string
}

// Authenticate verifies the bearer token, re-fetches the principal, and
// rejects tokens whose backing user record is gone or deactivated. The
// company id in the context always comes from the user row, not the token,
// so a stale token cannot outlive a deactivation or carry a forged tenant.
func Authenticate(tm *auth.TokenManager, users domain.UserRepository, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "access token required")
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				unauthorized(w, "invalid authorization header")
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				metrics.ObserveAuthFailure("token")
				if errors.Is(err, auth.ErrTokenExpired) {
					unauthorized(w, "token expired")
					return
				}
				unauthorized(w, "invalid token")
				return
			}

			user, err := users.GetByID(r.Context(), claims.UserID)
			if err != nil || !user.IsActive {
				// A token issued before deactivation must stop working
				// immediately, not at expiry.
				metrics.ObserveAuthFailure("principal")
				log.Info("rejected token for missing or inactive user",
					slog.Int64("user_id", claims.UserID),
				)
				unauthorized(w, "invalid or expired token")
				return
			}

			ac := &AuthContext{
				UserID:    user.ID,
				CompanyID: user.CompanyID,
				Role:      user.Role,
				Username:  user.Username,
			}
			ctx := context.WithValue(r.Context(), authContextKey{}, ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantScope enforces that the request operates inside the authenticated
// company. A client-supplied company_id that disagrees with the context is
// rejected outright rather than silently overridden; one that agrees is
// redundant and allowed, which keeps the enforcer idempotent.
func TenantScope(authz *security.AuthorizationService, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := GetAuthContext(r.Context())
			if !ok {
				unauthorized(w, "authentication required")
				return
			}

			for _, key := range []string{"company_id", "companyId"} {
				v := r.URL.Query().Get(key)
				if v == "" {
					continue
				}
				requested, err := strconv.ParseInt(v, 10, 64)
				if err != nil || authz.ValidateCompanyAccess(ac.CompanyID, requested) != nil {
					log.Warn("cross-company access rejected",
						slog.Int64("company_id", ac.CompanyID),
						slog.String("requested", v),
						slog.String("path", r.URL.Path),
					)
					forbidden(w, "access denied: invalid company")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission gates a handler on the role permission table. Denials
// land in the audit trail with the permission that was refused.
func RequirePermission(authz *security.AuthorizationService, auditLog *audit.Logger, perm security.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := GetAuthContext(r.Context())
			if !ok {
				unauthorized(w, "authentication required")
				return
			}
			if err := authz.ValidatePermission(ac.Role, perm); err != nil {
				auditLog.LogDenied(r.Context(), ac.CompanyID, ac.UserID, string(perm))
				forbidden(w, domain.MessageOf(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies the per-company limiter. Requests without an auth
// context (shouldn't happen behind Authenticate) pass through.
func RateLimit(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := GetAuthContext(r.Context())
			if ok && !limiter.Allow(r.Context(), formatID(ac.CompanyID)) {
				writeAuthError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetAuthContext returns the auth context attached by Authenticate.
func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey{}).(*AuthContext)
	return ac, ok
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeAuthError(w, http.StatusUnauthorized, msg)
}

func forbidden(w http.ResponseWriter, msg string) {
	writeAuthError(w, http.StatusForbidden, msg)
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
