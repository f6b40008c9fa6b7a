package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nyralabs/contact-pipeline/internal/observability"
	"github.com/nyralabs/contact-pipeline/internal/pipeline"
)

// MetricsHandler serves pipeline throughput and queue depth counters.
type MetricsHandler struct {
	metrics *observability.Metrics
	queues  *pipeline.QueueSet
}

// NewMetricsHandler constructs the handler.
func NewMetricsHandler(metrics *observability.Metrics, queues *pipeline.QueueSet) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, queues: queues}
}

// Get GET /metrics.
func (h *MetricsHandler) Get(c *fiber.Ctx) error {
	return c.JSON(h.metrics.SnapshotWithDepths(h.queues.Depths()))
}
