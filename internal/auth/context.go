package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/domain"
)

type identityContextKey struct{}

// localsIdentityKey mirrors the identity into fiber locals for request logging.
const localsIdentityKey = "auth_identity"

// Identity is the authenticated caller decoded from an access token.
type Identity struct {
	UserID string
	Email  string
	Role   domain.Role
}

// IsAdmin reports whether the caller holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == domain.RoleAdmin
}

// IdentityFromClaims converts verified claims into an Identity.
func IdentityFromClaims(c Claims) Identity {
	return Identity{UserID: c.UserID, Email: c.Email, Role: c.Role}
}

// ContextWithIdentity attaches the authenticated identity to ctx.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the identity stored by ContextWithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || identity.UserID == "" {
		return Identity{}, false
	}
	return identity, true
}

// RequestIdentity returns the identity the middleware attached to c.
func RequestIdentity(c *fiber.Ctx) (Identity, bool) {
	return IdentityFromContext(c.UserContext())
}

// UserIDFromLocals returns the caller id for logging; empty when unauthenticated.
func UserIDFromLocals(c *fiber.Ctx) string {
	if identity, ok := c.Locals(localsIdentityKey).(Identity); ok {
		return identity.UserID
	}
	return ""
}
