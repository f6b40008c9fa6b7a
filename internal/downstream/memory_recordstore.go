package downstream

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryRecordStore is the demo/test record store. Same idempotence contract
// as the redis implementation, no external dependency.
type MemoryRecordStore struct {
	mu      sync.Mutex
	records map[string]CanonicalRecord
	ids     map[string]string
}

// NewMemoryRecordStore builds an empty store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		records: make(map[string]CanonicalRecord),
		ids:     make(map[string]string),
	}
}

// Upsert stores the record, reusing the ID for a known (entity, email) key.
func (s *MemoryRecordStore) Upsert(ctx context.Context, record CanonicalRecord) (string, error) {
	if record.Entity == "" || record.Email == "" {
		return "", fmt.Errorf("%w: entity and email are required", ErrInvalidRecord)
	}
	key := record.Entity + ":" + strings.ToLower(record.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ids[key]
	if !ok {
		id = uuid.NewString()
		s.ids[key] = id
	}
	s.records[key] = record
	return id, nil
}

// Len reports how many distinct contacts are stored.
func (s *MemoryRecordStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
