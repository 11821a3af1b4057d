package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tms/internal/api/http/handlers"
	"github.com/spec-kit/tms/internal/auth"
	"github.com/spec-kit/tms/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Events         *handlers.EventsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/api/auth")
	authGroup.Post("/signup", cfg.Auth.Signup)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.AuthMiddleware.Handle, cfg.Auth.Logout)
	authGroup.Post("/update-user", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin), cfg.Auth.UpdateUser)
	authGroup.Post("/get-users", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin), cfg.Auth.GetUsers)

	ticketGroup := app.Group("/api/ticket", cfg.AuthMiddleware.Handle)
	ticketGroup.Post("/", cfg.Tickets.Create)
	ticketGroup.Get("/", cfg.Tickets.List)
	ticketGroup.Get("/:id", cfg.Tickets.Get)

	app.Post("/api/events", cfg.Events.Inject)
}
