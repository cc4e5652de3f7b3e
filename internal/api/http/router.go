package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/query-desk/internal/api/http/handlers"
	"github.com/spec-kit/query-desk/internal/auth"
	"github.com/spec-kit/query-desk/internal/domain"
	"github.com/spec-kit/query-desk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	ClientQueries  *handlers.ClientQueriesHandler
	SupportQueries *handlers.SupportQueriesHandler
	AuthMiddleware *auth.AuthMiddleware
	Roles          auth.RoleAuthorizer
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/session", cfg.AuthMiddleware.Handle, cfg.Auth.Session)

	client := app.Group("/client", cfg.AuthMiddleware.Handle, auth.RequireRole(cfg.Roles, domain.RoleClient))
	client.Get("/queries/next-id", cfg.ClientQueries.NextID)
	client.Post("/queries", cfg.ClientQueries.Submit)
	client.Get("/queries", cfg.ClientQueries.History)

	support := app.Group("/support", cfg.AuthMiddleware.Handle, auth.RequireRole(cfg.Roles, domain.RoleSupport))
	support.Get("/queries", cfg.SupportQueries.List)
	support.Get("/queries/open", cfg.SupportQueries.OpenIDs)
	support.Post("/queries/:id/close", cfg.SupportQueries.Close)
}
