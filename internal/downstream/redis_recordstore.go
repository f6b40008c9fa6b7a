package downstream

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisRecordStore keeps canonical contact records as redis hashes keyed by
// the (entity, email) natural key. The record ID is written with HSETNX so
// concurrent upserts of the same contact converge on one ID.
type RedisRecordStore struct {
	client *redis.Client
}

// NewRedisRecordStore wraps an existing client.
func NewRedisRecordStore(client *redis.Client) *RedisRecordStore {
	return &RedisRecordStore{client: client}
}

// Upsert writes the record and returns its stable ID. Calling it again with
// the same entity and email updates fields but never changes the ID.
func (s *RedisRecordStore) Upsert(ctx context.Context, record CanonicalRecord) (string, error) {
	if record.Entity == "" || record.Email == "" {
		return "", fmt.Errorf("%w: entity and email are required", ErrInvalidRecord)
	}

	key := recordKey(record.Entity, record.Email)

	if err := s.client.HSetNX(ctx, key, "id", uuid.NewString()).Err(); err != nil {
		return "", fmt.Errorf("record store: %w", err)
	}

	fields := map[string]any{
		"entity": record.Entity,
		"email":  record.Email,
	}
	if record.Phone != "" {
		fields["phone"] = record.Phone
	}
	if record.Name != "" {
		fields["name"] = record.Name
	}
	if record.Source != "" {
		fields["source"] = record.Source
	}
	if record.Message != "" {
		fields["last_message"] = record.Message
	}
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return "", fmt.Errorf("record store: %w", err)
	}

	id, err := s.client.HGet(ctx, key, "id").Result()
	if err != nil {
		return "", fmt.Errorf("record store: %w", err)
	}
	return id, nil
}

func recordKey(entity, email string) string {
	return "record:" + entity + ":" + strings.ToLower(email)
}
