package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/service"
)

// ProfileHandler serves the caller's own account.
type ProfileHandler struct {
	profiles *service.ProfileService
	auth     *service.AuthService
}

// NewProfileHandler constructs handler.
func NewProfileHandler(profiles *service.ProfileService, authService *service.AuthService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, auth: authService}
}

// Get handles GET /api/profile.
func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	user, err := h.profiles.Get(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "user": dto.NewUserResponse(user)})
}

// Update handles PUT /api/profile.
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var req dto.UpdateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.profiles.Update(c.UserContext(), identity, service.ProfileUpdate{Name: req.Name, Phone: req.Phone})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated successfully",
		"user":    dto.NewUserResponse(user),
	})
}

// ChangePassword handles PUT /api/profile/password.
func (h *ProfileHandler) ChangePassword(c *fiber.Ctx) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.auth.ChangePassword(c.UserContext(), identity, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Password changed successfully"})
}

// Activity handles GET /api/profile/activity.
func (h *ProfileHandler) Activity(c *fiber.Ctx) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	activity, err := h.profiles.Activity(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "activity": activity})
}
