package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nyralabs/contact-pipeline/internal/api/http/handlers"
	"github.com/nyralabs/contact-pipeline/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Ingest  *handlers.IngestHandler
	Status  *handlers.StatusHandler
	Metrics *handlers.MetricsHandler

	// IngestAuth guards POST /events when a shared secret is configured;
	// nil leaves ingestion open.
	IngestAuth *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.IngestAuth != nil {
		app.Post("/events", cfg.IngestAuth.Handle, cfg.Ingest.Submit)
	} else {
		app.Post("/events", cfg.Ingest.Submit)
	}

	app.Get("/status/:eventId", cfg.Status.Get)
	app.Get("/metrics", cfg.Metrics.Get)
}
