package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/yourorg/fleetops/internal/domain"
	"github.com/yourorg/fleetops/internal/security/audit"
	"github.com/yourorg/fleetops/internal/security/auth"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles registration, login and credential management.
type AuthService struct {
	users     domain.UserRepository
	companies domain.CompanyRepository
	tokens    *auth.TokenManager
	audit     *audit.Logger
	logger    *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	users domain.UserRepository,
	companies domain.CompanyRepository,
	tokens *auth.TokenManager,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:     users,
		companies: companies,
		tokens:    tokens,
		audit:     auditLog,
		logger:    logger,
	}
}

// RegisterInput carries the fields of a company registration request.
type RegisterInput struct {
	CompanyName  string `json:"company_name"`
	BusinessType string `json:"business_type"`
	State        string `json:"state"`
	ContactEmail string `json:"contact_email"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
}

// AuthResult is returned from register and login.
type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresIn int          `json:"expires_in"`
	TokenType string       `json:"token_type"`
	User      *domain.User `json:"user"`
}

// Register creates a company together with its first admin user and signs
// the new user in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if in.CompanyName == "" || in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, domain.Invalid("company_name, username, email and password are required")
	}
	if len(in.Password) < 8 {
		return nil, domain.Invalid("password must be at least 8 characters")
	}
	if !strings.Contains(in.Email, "@") {
		return nil, domain.Invalid("invalid email address")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.Internal("failed to register user", err)
	}

	company := &domain.Company{
		Name:         in.CompanyName,
		BusinessType: in.BusinessType,
		State:        in.State,
		ContactEmail: in.ContactEmail,
	}
	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         domain.RoleAdmin,
	}

	if err := s.users.CreateWithCompany(ctx, company, user); err != nil {
		if domain.KindOf(err) == domain.KindConflict {
			return nil, err
		}
		s.logger.Error("failed to register user", slog.String("error", err.Error()))
		return nil, domain.Internal("failed to register user", err)
	}

	token, err := s.tokens.GenerateToken(user.ID, user.CompanyID, string(user.Role), user.Username)
	if err != nil {
		return nil, domain.Internal("failed to generate token", err)
	}

	s.logger.Info("company registered",
		slog.Int64("company_id", company.ID),
		slog.Int64("user_id", user.ID),
	)
	s.audit.LogAction(ctx, company.ID, user.ID, "register", "company", company.ID, "success", in.CompanyName)

	user.PasswordHash = ""
	return &AuthResult{
		Token:     token,
		ExpiresIn: int(s.tokens.Validity().Seconds()),
		TokenType: "Bearer",
		User:      user,
	}, nil
}

// Login authenticates by username or email and returns a signed token.
// Lookup failures and wrong passwords produce the same error so callers
// cannot probe for valid accounts.
func (s *AuthService) Login(ctx context.Context, login, password string) (*AuthResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, domain.Invalid("username and password are required")
	}

	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			s.audit.LogLogin(ctx, 0, 0, "failure", login)
			return nil, domain.Unauthenticated("invalid credentials")
		}
		return nil, domain.Internal("failed to log in", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.audit.LogLogin(ctx, user.CompanyID, user.ID, "failure", login)
		return nil, domain.Unauthenticated("invalid credentials")
	}

	token, err := s.tokens.GenerateToken(user.ID, user.CompanyID, string(user.Role), user.Username)
	if err != nil {
		return nil, domain.Internal("failed to generate token", err)
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.audit.LogLogin(ctx, user.CompanyID, user.ID, "success", login)

	user.PasswordHash = ""
	return &AuthResult{
		Token:     token,
		ExpiresIn: int(s.tokens.Validity().Seconds()),
		TokenType: "Bearer",
		User:      user,
	}, nil
}

// Profile returns the caller's user record.
func (s *AuthService) Profile(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

// Company returns the caller's company record.
func (s *AuthService) Company(ctx context.Context, companyID int64) (*domain.Company, error) {
	return s.companies.GetByID(ctx, companyID)
}

// ChangePassword verifies the current password before replacing it.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if len(next) < 8 {
		return domain.Invalid("new password must be at least 8 characters")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return domain.Unauthenticated("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return domain.Internal("failed to change password", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}

	s.logger.Info("user changed password", slog.Int64("user_id", userID))
	s.audit.LogAction(ctx, user.CompanyID, userID, "change_password", "user", userID, "success", "")
	return nil
}
