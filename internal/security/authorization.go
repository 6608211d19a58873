package security

import (
	"fmt"
	"log/slog"

	"github.com/yourorg/fleetops/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermStartSession   Permission = "start_session"
	PermEndSession     Permission = "end_session"
	PermViewSessions   Permission = "view_sessions"
	PermViewAnalytics  Permission = "view_analytics"
	PermViewFleet      Permission = "view_fleet"
	PermManageUsers    Permission = "manage_users"
	PermManageCompany  Permission = "manage_company"
	PermViewAuditTrail Permission = "view_audit_trail"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleAdmin: {
		PermStartSession,
		PermEndSession,
		PermViewSessions,
		PermViewAnalytics,
		PermViewFleet,
		PermManageUsers,
		PermManageCompany,
		PermViewAuditTrail,
	},
	domain.RoleManager: {
		PermStartSession,
		PermEndSession,
		PermViewSessions,
		PermViewAnalytics,
		PermViewFleet,
		PermViewAuditTrail,
	},
	domain.RoleOperator: {
		PermStartSession,
		PermEndSession,
		PermViewSessions,
		PermViewFleet,
	},
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role domain.Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}
	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// ValidatePermission validates that a role has a specific permission
func (as *AuthorizationService) ValidatePermission(role domain.Role, permission Permission) error {
	if !as.HasPermission(role, permission) {
		as.logger.Warn("permission denied",
			slog.String("role", string(role)),
			slog.String("permission", string(permission)),
		)
		return domain.Forbidden(fmt.Sprintf("permission denied: %s role cannot %s", role, permission))
	}
	return nil
}

// GetRolePermissions returns all permissions for a role
func (as *AuthorizationService) GetRolePermissions(role domain.Role) []Permission {
	return RolePermissions[role]
}

// ValidateCompanyAccess checks that a principal is acting inside its own
// company. There is no cross-company role; every principal is bound to the
// company on its user record.
func (as *AuthorizationService) ValidateCompanyAccess(userCompanyID, requestedCompanyID int64) error {
	if userCompanyID != requestedCompanyID {
		as.logger.Warn("company access denied",
			slog.Int64("user_company", userCompanyID),
			slog.Int64("requested_company", requestedCompanyID),
		)
		return domain.Forbidden("access denied: invalid company")
	}
	return nil
}
