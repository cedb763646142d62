package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-request-engine/internal/api/http/handlers"
	"github.com/spec-kit/service-request-engine/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Requests       *handlers.RequestsHandler
	AuthMiddleware *auth.AuthMiddleware
	DevRoutes      bool
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.DevRoutes && cfg.Auth != nil {
		app.Post("/auth/dev-token", cfg.Auth.DevToken)
	}

	requests := app.Group("/requests", cfg.AuthMiddleware.Handle, auth.RequireRole())
	requests.Post("/", cfg.Requests.Create)
	requests.Get("/", cfg.Requests.List)
	requests.Get("/:id", cfg.Requests.Get)
	requests.Post("/:id/workflow", cfg.Requests.ApplyWorkflow)
	requests.Patch("/:id/content", cfg.Requests.ApplyContentEdit)
}
