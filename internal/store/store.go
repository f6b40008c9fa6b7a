// Package store persists workflow instances. The pipeline only depends on
// the InstanceStore interface; the in-memory implementation backs demo mode
// and tests, the postgres implementation backs production.
package store

import (
	"context"
	"errors"

	"github.com/nyralabs/contact-pipeline/internal/domain"
)

// ErrInstanceNotFound is returned when no instance exists for an event ID.
var ErrInstanceNotFound = errors.New("workflow instance not found")

// InstanceStore persists WorkflowInstance records keyed by event ID.
// Implementations must be safe for concurrent use by all partition workers
// and the status endpoint.
type InstanceStore interface {
	Create(ctx context.Context, instance *domain.WorkflowInstance) error
	Get(ctx context.Context, eventID string) (*domain.WorkflowInstance, error)
	Update(ctx context.Context, instance *domain.WorkflowInstance) error
}

func cloneInstance(instance *domain.WorkflowInstance) *domain.WorkflowInstance {
	clone := *instance
	clone.History = make([]domain.StateTransition, len(instance.History))
	copy(clone.History, instance.History)
	if instance.LastError != nil {
		lastErr := *instance.LastError
		clone.LastError = &lastErr
	}
	return &clone
}
