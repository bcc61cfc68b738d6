package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/facilityops/facility-service/internal/api/http/handlers"
	"github.com/facilityops/facility-service/internal/auth"
	"github.com/facilityops/facility-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Shifts         *handlers.ShiftsHandler
	Notifications  *handlers.NotificationsHandler
	Dashboard      *handlers.DashboardHandler
	Exports        *handlers.ExportsHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/internal/metrics", cfg.Metrics.Snapshot)
	}

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	tickets := api.Group("/tickets")
	tickets.Post("/", auth.RequireCapability(domain.CapRaiseTicket), cfg.Tickets.Create)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Patch("/:id", cfg.Tickets.Update)
	tickets.Delete("/:id", cfg.Tickets.Delete)
	tickets.Post("/:id/claim", auth.RequireCapability(domain.CapClaim), cfg.Tickets.Claim)
	tickets.Get("/:id/candidates", auth.RequireCapability(domain.CapDispatch), cfg.Tickets.Candidates)
	tickets.Get("/:id/history", cfg.Tickets.History)

	shifts := api.Group("/shifts", auth.RequireCapability(domain.CapCheckIn))
	shifts.Post("/", cfg.Shifts.Toggle)
	shifts.Get("/status", cfg.Shifts.Status)

	notifications := api.Group("/notifications")
	notifications.Get("/", cfg.Notifications.List)
	notifications.Get("/stream", cfg.Notifications.Stream)
	notifications.Post("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)

	api.Get("/dashboard", cfg.Dashboard.Board)
	api.Get("/exports/history", auth.RequireCapability(domain.CapAdminOverride), cfg.Exports.History)
}
