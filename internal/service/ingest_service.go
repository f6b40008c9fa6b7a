package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/nyralabs/contact-pipeline/internal/domain"
	"github.com/nyralabs/contact-pipeline/internal/pipeline"
	"github.com/nyralabs/contact-pipeline/internal/store"
	apperrors "github.com/nyralabs/contact-pipeline/pkg/util"
)

// IngestService runs the ingestion half of the pipeline: normalize, classify,
// admit into the state machine and enqueue onto the event's entity partition.
type IngestService struct {
	classifier *pipeline.Classifier
	queues     *pipeline.QueueSet
	machine    *pipeline.Machine
	instances  store.InstanceStore
	logger     *zap.Logger
}

// IngestDependencies bundles collaborators for the ingest service.
type IngestDependencies struct {
	Classifier *pipeline.Classifier
	Queues     *pipeline.QueueSet
	Machine    *pipeline.Machine
	Instances  store.InstanceStore
	Logger     *zap.Logger
}

// NewIngestService constructs the service.
func NewIngestService(deps IngestDependencies) *IngestService {
	return &IngestService{
		classifier: deps.Classifier,
		queues:     deps.Queues,
		machine:    deps.Machine,
		instances:  deps.Instances,
		logger:     deps.Logger,
	}
}

// Submit ingests one raw payload and returns the new event ID. Malformed
// payloads are rejected before any workflow instance exists; a full partition
// queue surfaces as QueueFullError and terminates the admitted instance.
func (s *IngestService) Submit(ctx context.Context, sourceChannel string, fields map[string]string) (string, error) {
	ev, err := pipeline.Normalize(sourceChannel, fields)
	if err != nil {
		return "", err
	}

	if _, matched := s.classifier.Classify(ev); !matched {
		// ClassificationAmbiguity: resolved with the default entity,
		// logged but never surfaced to the caller.
		s.logger.Warn("no entity keyword matched; using default entity",
			zap.String("event_id", ev.ID),
			zap.String("entity", ev.BusinessEntity),
			zap.String("source_channel", sourceChannel))
	}

	instance, err := s.machine.Admit(ctx, ev)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}

	if err := s.queues.Enqueue(ctx, ev); err != nil {
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == "QueueFullError" {
			if rejectErr := s.machine.Reject(ctx, instance, domainErr.Code); rejectErr != nil {
				s.logger.Error("failed to terminate rejected instance",
					zap.String("event_id", ev.ID), zap.Error(rejectErr))
			}
			return "", err
		}
		return "", apperrors.NewInternalError(err)
	}

	s.logger.Info("event queued",
		zap.String("event_id", ev.ID),
		zap.String("entity", ev.BusinessEntity),
		zap.String("intent", string(ev.IntentCategory)))
	return ev.ID, nil
}

// Status returns the workflow instance for an event ID.
func (s *IngestService) Status(ctx context.Context, eventID string) (*domain.WorkflowInstance, error) {
	instance, err := s.instances.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, store.ErrInstanceNotFound) {
			return nil, apperrors.NewNotFound("event", map[string]any{"eventId": eventID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return instance, nil
}
