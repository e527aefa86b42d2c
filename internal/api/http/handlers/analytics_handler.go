package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/service"
)

// AnalyticsHandler serves admin reporting.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Dashboard GET /api/analytics/dashboard.
func (h *AnalyticsHandler) Dashboard(c *fiber.Ctx) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	dash, err := h.analytics.Dashboard(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":           true,
		"stats":             dash.Stats,
		"categoryBreakdown": dash.CategoryBreakdown,
		"statusBreakdown":   dash.StatusBreakdown,
		"trends":            dash.Trends,
		"ratings":           dash.Ratings,
	})
}

// Ratings GET /api/analytics/ratings.
func (h *AnalyticsHandler) Ratings(c *fiber.Ctx) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	ratings, err := h.analytics.Ratings(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "ratings": ratings})
}
