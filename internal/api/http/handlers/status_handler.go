package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nyralabs/contact-pipeline/internal/api/dto"
	"github.com/nyralabs/contact-pipeline/internal/service"
	apperrors "github.com/nyralabs/contact-pipeline/pkg/util"
)

// StatusHandler exposes per-event workflow status.
type StatusHandler struct {
	ingest *service.IngestService
}

// NewStatusHandler constructs the handler.
func NewStatusHandler(ingest *service.IngestService) *StatusHandler {
	return &StatusHandler{ingest: ingest}
}

// Get GET /status/:eventId.
func (h *StatusHandler) Get(c *fiber.Ctx) error {
	eventID := c.Params("eventId")
	if eventID == "" {
		return apperrors.NewValidationError("eventId is required", nil)
	}

	instance, err := h.ingest.Status(c.UserContext(), eventID)
	if err != nil {
		return err
	}

	return c.JSON(dto.StatusResponse{
		EventID:      instance.EventID,
		CurrentState: string(instance.CurrentState),
		AttemptCount: instance.AttemptCount,
		LastError:    instance.LastError,
	})
}
