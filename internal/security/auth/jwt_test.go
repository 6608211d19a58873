package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	tm := NewTokenManager("secret", "fleetops-test", time.Hour)

	token, err := tm.GenerateToken(42, 7, "manager", "dana")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	claims, err := tm.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.UserID != 42 || claims.CompanyID != 7 || claims.Role != "manager" || claims.Username != "dana" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.Issuer != "fleetops-test" {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
}

func TestGenerateTokenRequiresIdentity(t *testing.T) {
	tm := NewTokenManager("secret", "fleetops-test", time.Hour)
	if _, err := tm.GenerateToken(0, 7, "admin", "x"); err == nil {
		t.Fatal("expected error for missing user id")
	}
	if _, err := tm.GenerateToken(42, 0, "admin", "x"); err == nil {
		t.Fatal("expected error for missing company id")
	}
}

func TestExpiredToken(t *testing.T) {
	tm := NewTokenManager("secret", "fleetops-test", -time.Minute)
	token, err := tm.GenerateToken(42, 7, "admin", "dana")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := tm.ValidateToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	issuing := NewTokenManager("secret-a", "fleetops-test", time.Hour)
	verifying := NewTokenManager("secret-b", "fleetops-test", time.Hour)

	token, err := issuing.GenerateToken(42, 7, "admin", "dana")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := verifying.ValidateToken(token); err == nil {
		t.Fatal("expected validation failure with wrong secret")
	}
	if errors.Is(err, ErrTokenExpired) {
		t.Fatal("bad signature must not report expiry")
	}
}

func TestExtractToken(t *testing.T) {
	if tok, err := ExtractToken("Bearer abc.def.ghi"); err != nil || tok != "abc.def.ghi" {
		t.Fatalf("ExtractToken = %q, %v", tok, err)
	}
	for _, h := range []string{"", "abc", "Basic abc", "Bearer", "Bearer a b"} {
		if _, err := ExtractToken(h); err == nil {
			t.Fatalf("expected error for header %q", h)
		}
	}
}
