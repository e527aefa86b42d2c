package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

type countingRecorder struct {
	events map[string]int
}

func (r *countingRecorder) RecordTokenEvent(event string) {
	if r.events == nil {
		r.events = map[string]int{}
	}
	r.events[event]++
}

func newAuthFixture(t *testing.T) (*AuthService, *fakeUserRepo, *auth.TokenService, *countingRecorder) {
	t.Helper()
	tokens, err := auth.NewTokenService(auth.TokenServiceConfig{AccessSecret: "access-secret", RefreshSecret: "refresh-secret"})
	require.NoError(t, err)
	users := newFakeUserRepo()
	rec := &countingRecorder{}
	svc := NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, AuthDependencies{
		UserRepo: users,
		Tokens:   tokens,
		Events:   rec,
	})
	return svc, users, tokens, rec
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, tokens, rec := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Name: "Ann", Phone: "5551234567", Email: " A@X.com ", Password: "Test@123"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, user.Role)
	assert.Equal(t, "a@x.com", user.Email)
	assert.NotEqual(t, "Test@123", user.PasswordHash)

	res, err := svc.Login(ctx, "a@x.com", "Test@123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, domain.RoleCustomer, res.User.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), res.AccessExpiresAt, 5*time.Second)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), res.RefreshExpiresAt, 5*time.Second)

	claims, err := tokens.Verify(res.AccessToken, auth.TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	_, err = tokens.Verify(res.RefreshToken, auth.TokenKindAccess)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	assert.Equal(t, 1, rec.events["issued_access"])
	assert.Equal(t, 1, rec.events["issued_refresh"])
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "Ann", Email: "a@x.com", Password: "Test@123"})
	requireDomainError(t, err, http.StatusBadRequest, "All fields are required")

	_, err = svc.Register(ctx, RegisterInput{Name: "Ann", Phone: "5551234567", Email: "a@x.com", Password: "Test@123"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Name: "Ann", Phone: "5551234567", Email: "A@x.com", Password: "Test@123"})
	requireDomainError(t, err, http.StatusBadRequest, "Email already registered")
}

func TestRegisterUniqueViolationIsConflict(t *testing.T) {
	svc, users, _, _ := newAuthFixture(t)
	users.createErr = &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Ann", Phone: "5551234567", Email: "a@x.com", Password: "Test@123"})
	de := requireDomainError(t, err, http.StatusConflict, "Email already registered")
	assert.Equal(t, apperrors.CodeConflict, de.Code)
}

func TestCreateAdmin(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)
	user, err := svc.CreateAdmin(context.Background(), RegisterInput{Name: "Root", Phone: "5550000000", Email: "root@x.com", Password: "Admin@123"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, user.Role)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Name: "Ann", Phone: "5551234567", Email: "a@x.com", Password: "Test@123"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "a@x.com", "wrong")
	requireDomainError(t, err, http.StatusUnauthorized, "Invalid email or password")
	_, err = svc.Login(ctx, "nobody@x.com", "Test@123")
	requireDomainError(t, err, http.StatusUnauthorized, "Invalid email or password")
	_, err = svc.Login(ctx, "", "")
	requireDomainError(t, err, http.StatusBadRequest, "Email and password are required")
}

func TestRefresh(t *testing.T) {
	svc, _, tokens, rec := newAuthFixture(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Name: "Ann", Phone: "5551234567", Email: "a@x.com", Password: "Test@123"})
	require.NoError(t, err)
	login, err := svc.Login(ctx, "a@x.com", "Test@123")
	require.NoError(t, err)

	res, err := svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	claims, err := tokens.Verify(res.AccessToken, auth.TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, 1, rec.events["refresh_ok"])

	_, err = svc.Refresh(ctx, login.AccessToken)
	requireDomainError(t, err, http.StatusUnauthorized, "Invalid refresh token")

	_, err = svc.Refresh(ctx, "")
	requireDomainError(t, err, http.StatusBadRequest, "Refresh token required")
}

func TestRefreshExpiredToken(t *testing.T) {
	svc, _, tokens, rec := newAuthFixture(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Name: "Ann", Phone: "5551234567", Email: "a@x.com", Password: "Test@123"})
	require.NoError(t, err)
	login, err := svc.Login(ctx, "a@x.com", "Test@123")
	require.NoError(t, err)

	later := time.Now().Add(8 * 24 * time.Hour)
	tokens.WithClock(func() time.Time { return later })

	_, err = svc.Refresh(ctx, login.RefreshToken)
	requireDomainError(t, err, http.StatusUnauthorized, "Invalid refresh token")
	assert.Equal(t, 1, rec.events["refresh_failed"])
}

func TestRefreshForDeletedUser(t *testing.T) {
	svc, users, tokens, _ := newAuthFixture(t)
	refresh, _, err := tokens.IssueRefreshToken(auth.Claims{UserID: "ghost", Email: "g@x.com", Role: domain.RoleCustomer})
	require.NoError(t, err)
	require.Empty(t, users.users)

	_, err = svc.Refresh(context.Background(), refresh)
	requireDomainError(t, err, http.StatusUnauthorized, "User not found")
}

func TestChangePassword(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)
	ctx := context.Background()
	user, err := svc.Register(ctx, RegisterInput{Name: "Ann", Phone: "5551234567", Email: "a@x.com", Password: "Test@123"})
	require.NoError(t, err)
	identity := auth.Identity{UserID: user.ID, Email: user.Email, Role: user.Role}

	err = svc.ChangePassword(ctx, identity, "Test@123", "weak")
	requireDomainError(t, err, http.StatusBadRequest, "")

	err = svc.ChangePassword(ctx, identity, "nope", "Better@456")
	requireDomainError(t, err, http.StatusUnauthorized, "Current password is incorrect")

	require.NoError(t, svc.ChangePassword(ctx, identity, "Test@123", "Better@456"))
	_, err = svc.Login(ctx, "a@x.com", "Test@123")
	require.Error(t, err)
	_, err = svc.Login(ctx, "a@x.com", "Better@456")
	require.NoError(t, err)
}

func TestIssueAccessTokenFor(t *testing.T) {
	svc, _, tokens, _ := newAuthFixture(t)
	ctx := context.Background()
	_, err := svc.CreateAdmin(ctx, RegisterInput{Name: "Root", Phone: "5550000000", Email: "root@x.com", Password: "Admin@123"})
	require.NoError(t, err)

	token, _, user, err := svc.IssueAccessTokenFor(ctx, "root@x.com")
	require.NoError(t, err)
	claims, err := tokens.Verify(token, auth.TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)

	_, _, _, err = svc.IssueAccessTokenFor(ctx, "nobody@x.com")
	requireDomainError(t, err, http.StatusNotFound, "User not found")
}
