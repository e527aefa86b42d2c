package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// TokenEventRecorder counts token lifecycle events. *observability.Metrics satisfies it.
type TokenEventRecorder interface {
	RecordTokenEvent(event string)
}

// AuthService coordinates registration, login, refresh and password changes.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenService
	events     TokenEventRecorder
	logger     *zap.Logger
	bcryptCost int
}

// AuthDependencies encapsulates requirements for auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Tokens   *auth.TokenService
	Events   TokenEventRecorder
	Logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		events:     deps.Events,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
	}
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Name     string
	Phone    string
	Email    string
	Password string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             *domain.User
}

// RefreshResult carries the replacement access token. No new refresh token is issued.
type RefreshResult struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Register creates a customer account. The role is never taken from the caller.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	return s.createUser(ctx, in, domain.RoleCustomer)
}

// CreateAdmin provisions an admin account. Only reachable from the operator CLI.
func (s *AuthService) CreateAdmin(ctx context.Context, in RegisterInput) (*domain.User, error) {
	return s.createUser(ctx, in, domain.RoleAdmin)
}

func (s *AuthService) createUser(ctx context.Context, in RegisterInput, role domain.Role) (*domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = repository.NormalizeEmail(in.Email)
	if in.Name == "" || in.Phone == "" || in.Email == "" || in.Password == "" {
		return nil, apperrors.NewValidationError("All fields are required", nil)
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperrors.NewValidationError("Email already registered", nil)
	} else if !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Name:         in.Name,
		Phone:        in.Phone,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if isUniqueViolation(err) {
			// lost a race with a concurrent registration for the same email
			return nil, apperrors.NewConflict("Email already registered", nil)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return user, nil
}

// Login verifies credentials and issues an access/refresh pair.
// Unknown email and wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = repository.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("Email and password are required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewUnauthenticated("Invalid email or password")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthenticated("Invalid email or password")
	}

	claims := auth.Claims{UserID: user.ID, Email: user.Email, Role: user.Role}
	access, accessExp, err := s.tokens.IssueAccessToken(claims)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := s.tokens.IssueRefreshToken(claims)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	s.record(observability.TokenEventIssuedAccess)
	s.record(observability.TokenEventIssuedRefresh)

	return &LoginResult{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		User:             user,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token.
// Claims come from the stored user, so email and role reflect the current record.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, apperrors.NewValidationError("Refresh token required", nil)
	}

	claims, err := s.tokens.Verify(refreshToken, auth.TokenKindRefresh)
	if err != nil {
		s.record(observability.TokenEventRefreshFailed)
		return nil, apperrors.NewUnauthenticated("Invalid refresh token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.record(observability.TokenEventRefreshFailed)
			return nil, apperrors.NewUnauthenticated("User not found")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	access, exp, err := s.tokens.IssueAccessToken(auth.Claims{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	s.record(observability.TokenEventRefreshOK)
	s.record(observability.TokenEventIssuedAccess)
	return &RefreshResult{AccessToken: access, ExpiresAt: exp}, nil
}

// ChangePassword is the only path that mutates a password hash.
func (s *AuthService) ChangePassword(ctx context.Context, identity auth.Identity, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return apperrors.NewValidationError("Current and new password are required", nil)
	}
	if !auth.PasswordStrongEnough(newPassword) {
		return apperrors.NewValidationError("Password must be at least 6 characters and contain uppercase, lowercase, and number", nil)
	}

	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewNotFound("User", nil)
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthenticated("Current password is incorrect")
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.logger.Info("password changed", zap.String("user_id", user.ID))
	return nil
}

// IssueAccessTokenFor mints an access token for a stored user without a password check.
// Operator tooling only.
func (s *AuthService) IssueAccessTokenFor(ctx context.Context, email string) (string, time.Time, *domain.User, error) {
	user, err := s.users.GetByEmail(ctx, repository.NormalizeEmail(email))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return "", time.Time{}, nil, apperrors.NewNotFound("User", nil)
		}
		return "", time.Time{}, nil, err
	}
	token, exp, err := s.tokens.IssueAccessToken(auth.Claims{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return "", time.Time{}, nil, err
	}
	s.record(observability.TokenEventIssuedAccess)
	return token, exp, user, nil
}

func (s *AuthService) record(event string) {
	if s.events != nil {
		s.events.RecordTokenEvent(event)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
