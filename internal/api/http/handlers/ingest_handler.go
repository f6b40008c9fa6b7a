package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nyralabs/contact-pipeline/internal/api/dto"
	"github.com/nyralabs/contact-pipeline/internal/service"
	apperrors "github.com/nyralabs/contact-pipeline/pkg/util"
)

// IngestHandler accepts inbound business events.
type IngestHandler struct {
	ingest *service.IngestService
}

// NewIngestHandler constructs the handler.
func NewIngestHandler(ingest *service.IngestService) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

// Submit POST /events.
func (h *IngestHandler) Submit(c *fiber.Ctx) error {
	var req dto.IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewMalformedPayload("body must be JSON with sourceChannel and fields")
	}
	if req.SourceChannel == "" {
		return apperrors.NewMalformedPayload("sourceChannel is required")
	}
	if len(req.Fields) == 0 {
		return apperrors.NewMalformedPayload("fields must not be empty")
	}

	eventID, err := h.ingest.Submit(c.UserContext(), req.SourceChannel, req.Fields)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.IngestResponse{
		EventID: eventID,
		Status:  "queued",
	})
}
