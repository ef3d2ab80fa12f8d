package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-desk/internal/api/http/handlers"
	"github.com/spec-kit/ticket-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tokens         *handlers.TokensHandler
	Workspaces     *handlers.WorkspacesHandler
	Profiles       *handlers.ProfilesHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/token", cfg.Tokens.IssueToken)

	ws := app.Group("/workspaces/:workspace", cfg.AuthMiddleware.Handle, auth.RequireWorkspace("workspace"))

	admin := auth.RequireRole(auth.RoleAdmin)
	staff := auth.RequireRole(auth.RoleAdmin, auth.RoleAssignee)

	ws.Get("/config", staff, cfg.Workspaces.GetConfig)
	ws.Patch("/config", admin, cfg.Workspaces.Setup)
	ws.Get("/attributes", staff, cfg.Workspaces.ListAttributes)
	ws.Put("/attributes", admin, cfg.Workspaces.UpsertAttribute)
	ws.Get("/dashboard", staff, cfg.Workspaces.Dashboard)

	ws.Get("/profiles/:member", staff, cfg.Profiles.Get)
	ws.Patch("/profiles/:member", staff, cfg.Profiles.Update)

	ws.Get("/eligible", cfg.Tickets.ListEligible)
	ws.Post("/tickets", cfg.Tickets.CreateTicket)
	ws.Post("/recover", admin, cfg.Tickets.Recover)
	ws.Post("/members/:member/availability", staff, cfg.Tickets.ToggleAvailability)

	channel := ws.Group("/channels/:channel")
	channel.Post("/activity", cfg.Tickets.RecordActivity)
	channel.Post("/close", staff, cfg.Tickets.CloseTicket)
	channel.Post("/reopen", cfg.Tickets.ReopenTicket)
	channel.Post("/extend", cfg.Tickets.Extend)
	channel.Put("/timer", staff, cfg.Tickets.OverrideTimer)
	channel.Post("/link", admin, cfg.Tickets.LinkChannel)
	channel.Delete("", staff, cfg.Tickets.DeleteChannel)
}
