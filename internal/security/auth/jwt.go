package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired distinguishes an expired token from a malformed or badly
// signed one; both end as 401 but callers report them differently.
var ErrTokenExpired = errors.New("token expired")

// Claims are the token payload: principal identity plus its company. The
// company id in the token is advisory only; the tenant scope middleware
// re-derives it from the user record on every request.
type Claims struct {
	UserID    int64  `json:"user_id"`
	CompanyID int64  `json:"company_id"`
	Role      string `json:"role"`
	Username  string `json:"username"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies signed bearer tokens. It never touches
// the database; validation is purely cryptographic.
type TokenManager struct {
	secret   []byte
	issuer   string
	validity time.Duration
}

func NewTokenManager(secret, issuer string, validity time.Duration) *TokenManager {
	if secret == "" {
		secret = "change-me-in-production"
	}
	if issuer == "" {
		issuer = "fleetops"
	}
	if validity <= 0 {
		validity = 7 * 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, validity: validity}
}

// Validity returns the configured token lifetime.
func (tm *TokenManager) Validity() time.Duration {
	return tm.validity
}

// GenerateToken mints a signed token for a principal.
func (tm *TokenManager) GenerateToken(userID, companyID int64, role, username string) (string, error) {
	if userID == 0 || companyID == 0 {
		return "", fmt.Errorf("user_id and company_id required")
	}
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		CompanyID: companyID,
		Role:      role,
		Username:  username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.validity)),
			Issuer:    tm.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// ValidateToken verifies signature and expiry and decodes the claims.
// Expired tokens return ErrTokenExpired; everything else is a parse failure.
func (tm *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("parse token failed: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// ExtractToken pulls the bearer token out of an Authorization header.
func ExtractToken(authHeader string) (string, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("invalid authorization header")
	}
	return parts[1], nil
}
