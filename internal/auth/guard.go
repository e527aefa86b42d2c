package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// CheckAdmin fails with Forbidden unless the caller is an admin.
func CheckAdmin(identity Identity) error {
	if !identity.IsAdmin() {
		return apperrors.NewForbidden("Admin access required")
	}
	return nil
}

// CheckOwnerOrAdmin fails with Forbidden unless the caller is an admin or owns the resource.
// Callers must have loaded the resource first so a missing one yields NotFound instead.
func CheckOwnerOrAdmin(identity Identity, ownerID string) error {
	if identity.IsAdmin() {
		return nil
	}
	if identity.UserID == "" || identity.UserID != ownerID {
		return apperrors.NewForbidden("Unauthorized")
	}
	return nil
}

// RequireAdmin is route middleware; it must run after AuthMiddleware.Handle.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := RequestIdentity(c)
		if !ok {
			return apperrors.NewUnauthenticated("No token provided")
		}
		if err := CheckAdmin(identity); err != nil {
			return err
		}
		return c.Next()
	}
}

// MustIdentity returns the caller or an Unauthenticated error when the middleware did not run.
func MustIdentity(c *fiber.Ctx) (Identity, error) {
	identity, ok := RequestIdentity(c)
	if !ok {
		return Identity{}, apperrors.NewUnauthenticated("No token provided")
	}
	return identity, nil
}
