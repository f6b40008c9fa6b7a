package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/nyralabs/contact-pipeline/internal/domain"
)

// MemoryStore keeps workflow instances in process memory. Terminal instances
// stay readable for status queries; archival is an external concern.
type MemoryStore struct {
	mu        sync.RWMutex
	instances map[string]*domain.WorkflowInstance
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{instances: make(map[string]*domain.WorkflowInstance)}
}

// Create stores a new instance. Duplicate event IDs are rejected.
func (s *MemoryStore) Create(ctx context.Context, instance *domain.WorkflowInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.instances[instance.EventID]; exists {
		return fmt.Errorf("instance for event %s already exists", instance.EventID)
	}
	s.instances[instance.EventID] = cloneInstance(instance)
	return nil
}

// Get returns a copy of the stored instance so readers never share mutable
// history with the state machine.
func (s *MemoryStore) Get(ctx context.Context, eventID string) (*domain.WorkflowInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	instance, ok := s.instances[eventID]
	if !ok {
		return nil, ErrInstanceNotFound
	}
	return cloneInstance(instance), nil
}

// Update persists the latest instance snapshot.
func (s *MemoryStore) Update(ctx context.Context, instance *domain.WorkflowInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[instance.EventID]; !ok {
		return ErrInstanceNotFound
	}
	s.instances[instance.EventID] = cloneInstance(instance)
	return nil
}

// Len reports how many instances the store holds.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances)
}
