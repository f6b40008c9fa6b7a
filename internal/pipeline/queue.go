package pipeline

import (
	"context"
	"fmt"

	"github.com/nyralabs/contact-pipeline/internal/domain"
	apperrors "github.com/nyralabs/contact-pipeline/pkg/util"
)

// QueueSet holds one bounded FIFO queue per business entity. Partitioning
// stops one entity's burst from blocking the others; the per-queue cap bounds
// total memory and is the pipeline's backpressure point.
type QueueSet struct {
	queues      map[string]chan *domain.ContactEvent
	capacity    int
	blockOnFull bool
}

// NewQueueSet creates a queue per entity with the given capacity.
// When blockOnFull is false a full queue rejects enqueues with QueueFullError;
// when true the enqueue blocks until space frees or the context is done.
func NewQueueSet(entities []domain.BusinessEntityConfig, capacity int, blockOnFull bool) *QueueSet {
	if capacity <= 0 {
		capacity = 1
	}
	queues := make(map[string]chan *domain.ContactEvent, len(entities))
	for _, entity := range entities {
		queues[entity.EntityKey] = make(chan *domain.ContactEvent, capacity)
	}
	return &QueueSet{queues: queues, capacity: capacity, blockOnFull: blockOnFull}
}

// Enqueue appends the event to its entity's queue, applying the configured
// full-queue policy.
func (qs *QueueSet) Enqueue(ctx context.Context, ev *domain.ContactEvent) error {
	queue, ok := qs.queues[ev.BusinessEntity]
	if !ok {
		return fmt.Errorf("no queue for entity %s", ev.BusinessEntity)
	}

	if qs.blockOnFull {
		select {
		case queue <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case queue <- ev:
		return nil
	default:
		return apperrors.NewQueueFull(ev.BusinessEntity)
	}
}

// Dequeue blocks until an event is available for the entity or the context
// is canceled. Events come out in enqueue order.
func (qs *QueueSet) Dequeue(ctx context.Context, entity string) (*domain.ContactEvent, error) {
	queue, ok := qs.queues[entity]
	if !ok {
		return nil, fmt.Errorf("no queue for entity %s", entity)
	}
	select {
	case ev := <-queue:
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Depth returns the current number of queued events for an entity.
func (qs *QueueSet) Depth(entity string) int {
	if queue, ok := qs.queues[entity]; ok {
		return len(queue)
	}
	return 0
}

// Depths snapshots queue depth per entity.
func (qs *QueueSet) Depths() map[string]int {
	depths := make(map[string]int, len(qs.queues))
	for entity, queue := range qs.queues {
		depths[entity] = len(queue)
	}
	return depths
}

// Capacity is the per-entity queue bound.
func (qs *QueueSet) Capacity() int {
	return qs.capacity
}

// Entities lists the partition keys the set was built with.
func (qs *QueueSet) Entities() []string {
	keys := make([]string, 0, len(qs.queues))
	for entity := range qs.queues {
		keys = append(keys, entity)
	}
	return keys
}
