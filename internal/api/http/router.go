package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Profile        *handlers.ProfileHandler
	Tickets        *handlers.TicketsHandler
	Messages       *handlers.MessagesHandler
	Attachments    *handlers.AttachmentsHandler
	Devices        *handlers.DevicesHandler
	Analytics      *handlers.AnalyticsHandler
	AuthMiddleware *auth.AuthMiddleware
	LoginLimiter   *IPRateLimiter
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health", cfg.Health.Health)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	if cfg.LoginLimiter != nil {
		authGroup.Post("/login", cfg.LoginLimiter.Handler(), cfg.Auth.Login)
	} else {
		authGroup.Post("/login", cfg.Auth.Login)
	}
	authGroup.Post("/refresh", cfg.Auth.Refresh)

	requireAuth := cfg.AuthMiddleware.Handle

	profile := api.Group("/profile", requireAuth)
	profile.Get("/", cfg.Profile.Get)
	profile.Put("/", cfg.Profile.Update)
	profile.Put("/password", cfg.Profile.ChangePassword)
	profile.Get("/activity", cfg.Profile.Activity)

	tickets := api.Group("/tickets", requireAuth)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Patch("/:id", auth.RequireAdmin(), cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/rating", cfg.Tickets.RateTicket)
	tickets.Get("/:id/history", cfg.Tickets.History)

	messages := api.Group("/messages", requireAuth)
	messages.Get("/ticket/:ticketId", cfg.Messages.List)
	messages.Post("/:ticketId", cfg.Messages.Send)

	attachments := api.Group("/attachments", requireAuth)
	attachments.Post("/upload", cfg.Attachments.Upload)
	attachments.Get("/:id", cfg.Attachments.Download)
	attachments.Delete("/:id", cfg.Attachments.Delete)

	devices := api.Group("/devices", requireAuth)
	devices.Post("/register", cfg.Devices.Register)

	analytics := api.Group("/analytics", requireAuth, auth.RequireAdmin())
	analytics.Get("/dashboard", cfg.Analytics.Dashboard)
	analytics.Get("/ratings", cfg.Analytics.Ratings)
}
