package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/installer-orchestrator/internal/api/http/handlers"
	"github.com/spec-kit/installer-orchestrator/internal/auth"
	"github.com/spec-kit/installer-orchestrator/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Requests       *handlers.RequestsHandler
	Actions        *handlers.ActionsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/v1", cfg.AuthMiddleware.Handle, auth.RequireRole())
	v1.Post("/actions", cfg.Actions.Submit)

	requests := v1.Group("/requests")
	requests.Post("/", cfg.Requests.Submit)
	requests.Get("/:id", cfg.Requests.Get)
	requests.Get("/:id/audit", cfg.Requests.Audit)
	requests.Post("/:id/poll", cfg.Requests.Poll)
	requests.Post("/:id/feedback", cfg.Requests.SubmitFeedback)
	requests.Post("/:id/feedback/skip", cfg.Requests.SkipFeedback)

	requireAdmin := auth.RequireRole(domain.RoleAdmin)
	requests.Post("/:id/approve", requireAdmin, cfg.Requests.Approve)
	requests.Post("/:id/reject", requireAdmin, cfg.Requests.Reject)
}
