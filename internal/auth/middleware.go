package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// TokenVerifier is the subset of TokenService the middleware needs.
type TokenVerifier interface {
	Verify(token string, expected TokenKind) (Claims, error)
}

// VerifyObserver is notified of failed verifications (metrics).
type VerifyObserver func(err error)

// AuthMiddleware validates bearer access tokens on protected routes.
type AuthMiddleware struct {
	tokens   TokenVerifier
	observer VerifyObserver
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens TokenVerifier, observer VerifyObserver) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, observer: observer}
}

// Handle enforces authentication. It never touches the database.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return apperrors.NewUnauthenticated("No token provided")
	}

	claims, err := m.tokens.Verify(token, TokenKindAccess)
	if err != nil {
		if m.observer != nil {
			m.observer(err)
		}
		if errors.Is(err, ErrTokenExpired) {
			return apperrors.NewTokenExpired("Invalid token")
		}
		return apperrors.NewUnauthenticated("Invalid token")
	}

	identity := IdentityFromClaims(claims)
	c.SetUserContext(ContextWithIdentity(c.UserContext(), identity))
	c.Locals(localsIdentityKey, identity)
	return c.Next()
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
