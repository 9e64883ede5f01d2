package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-engine/internal/api/http/handlers"
	"github.com/spec-kit/support-engine/internal/auth"
	"github.com/spec-kit/support-engine/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Agents         *handlers.AgentsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/agents/login", cfg.Auth.Login)

	authProtected := authGroup.Group("", cfg.AuthMiddleware.Handle)
	authProtected.Post("/agents/register",
		auth.RequireRole(domain.RoleAdmin, domain.RoleSupervisor), cfg.Auth.Register)
	authProtected.Post("/password/change", auth.RequireRole(), cfg.Auth.ChangePassword)

	// Inbound webhook surface: ticket creation and customer messages
	// arrive from the messaging gateway without agent credentials.
	tickets := app.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Post("/:id/category", cfg.Tickets.SelectCategory)
	tickets.Post("/:id/rating", cfg.Tickets.Rate)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)

	ticketsProtected := tickets.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole())
	ticketsProtected.Get("/", cfg.Tickets.ListTickets)
	ticketsProtected.Get("/number/:number", cfg.Tickets.GetTicketByNumber)
	ticketsProtected.Get("/:id", cfg.Tickets.GetTicket)
	ticketsProtected.Get("/:id/messages", cfg.Tickets.ListMessages)
	ticketsProtected.Get("/:id/history", cfg.Tickets.History)
	ticketsProtected.Post("/:id/transfer", cfg.Tickets.Transfer)
	ticketsProtected.Post("/:id/close", cfg.Tickets.Close)

	agents := app.Group("/agents", cfg.AuthMiddleware.Handle, auth.RequireRole())
	agents.Get("/available", cfg.Agents.Available)
	agents.Get("/me", cfg.Agents.Me)
	agents.Post("/me/break/start", cfg.Agents.StartBreak)
	agents.Post("/me/break/end", cfg.Agents.EndBreak)
	agents.Post("/me/logout", cfg.Agents.Logout)
	agents.Post("/kpi/monthly/recompute",
		auth.RequireRole(domain.RoleAdmin, domain.RoleSupervisor), cfg.Agents.RecomputeMonthly)
	agents.Post("/:id/logout",
		auth.RequireRole(domain.RoleAdmin, domain.RoleSupervisor), cfg.Agents.ForceLogout)
	agents.Get("/:id/breaks", cfg.Agents.Sessions)
	agents.Get("/:id/kpi/daily", cfg.Agents.DailyKPI)
	agents.Get("/:id/kpi/monthly", cfg.Agents.MonthlyKPI)
}
