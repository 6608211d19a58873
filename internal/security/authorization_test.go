package security

import (
	"io"
	"log/slog"
	"testing"

	"github.com/yourorg/fleetops/internal/domain"
)

func testAuthz() *AuthorizationService {
	return NewAuthorizationService(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHasPermission(t *testing.T) {
	as := testAuthz()

	if !as.HasPermission(domain.RoleOperator, PermStartSession) {
		t.Fatal("operators must be able to start sessions")
	}
	if as.HasPermission(domain.RoleOperator, PermViewAnalytics) {
		t.Fatal("operators must not see analytics")
	}
	if as.HasPermission(domain.RoleManager, PermManageUsers) {
		t.Fatal("managers must not manage users")
	}
	if !as.HasPermission(domain.RoleAdmin, PermManageCompany) {
		t.Fatal("admins manage their own company")
	}
	if as.HasPermission(domain.Role("ghost"), PermViewFleet) {
		t.Fatal("unknown roles hold no permissions")
	}
}

func TestValidatePermission(t *testing.T) {
	as := testAuthz()

	if err := as.ValidatePermission(domain.RoleManager, PermViewAnalytics); err != nil {
		t.Fatalf("manager analytics should pass: %v", err)
	}
	err := as.ValidatePermission(domain.RoleOperator, PermViewAnalytics)
	if domain.KindOf(err) != domain.KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestGetRolePermissions(t *testing.T) {
	as := testAuthz()

	perms := as.GetRolePermissions(domain.RoleOperator)
	if len(perms) == 0 {
		t.Fatal("operator permission set must not be empty")
	}
	for _, p := range perms {
		if p == PermViewAnalytics {
			t.Fatal("operator set must not include view_analytics")
		}
	}

	if got := as.GetRolePermissions(domain.Role("ghost")); len(got) != 0 {
		t.Fatalf("unknown role should have no permissions, got %v", got)
	}
}

func TestValidateCompanyAccess(t *testing.T) {
	as := testAuthz()

	if err := as.ValidateCompanyAccess(7, 7); err != nil {
		t.Fatalf("same company should pass: %v", err)
	}
	err := as.ValidateCompanyAccess(7, 8)
	if domain.KindOf(err) != domain.KindAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}
}
