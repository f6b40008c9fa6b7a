package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nyralabs/contact-pipeline/internal/pipeline"
	"github.com/nyralabs/contact-pipeline/internal/worker"
)

// HealthHandler responds to liveness and readiness probes. The pipeline is
// healthy only while every partition worker is running and no queue has
// grown past the critical depth.
type HealthHandler struct {
	serviceName   string
	version       string
	workers       *worker.Pool
	queues        *pipeline.QueueSet
	criticalDepth int
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, workers *worker.Pool, queues *pipeline.QueueSet, criticalDepth int) *HealthHandler {
	if criticalDepth <= 0 {
		criticalDepth = queues.Capacity()
	}
	return &HealthHandler{
		serviceName:   serviceName,
		version:       version,
		workers:       workers,
		queues:        queues,
		criticalDepth: criticalDepth,
	}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports healthy or degraded.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	depths := h.queues.Depths()
	workersUp := h.workers.Running()

	depthOK := true
	for _, depth := range depths {
		if depth >= h.criticalDepth {
			depthOK = false
			break
		}
	}

	if workersUp && depthOK {
		return c.JSON(fiber.Map{
			"status":     "healthy",
			"workers":    h.workers.RunningByEntity(),
			"queueDepth": depths,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"status":     "degraded",
		"workers":    h.workers.RunningByEntity(),
		"queueDepth": depths,
	})
}
