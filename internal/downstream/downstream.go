// Package downstream holds the narrow contracts for the pipeline's external
// collaborators. Agent handlers depend only on these interfaces; production
// wiring plugs in redis and webhook implementations, demo mode and tests plug
// in the in-memory ones.
package downstream

import (
	"context"
	"errors"
)

// ErrInvalidRecord marks a record the store rejects on validation grounds.
// Handlers classify it as permanent: retrying the same record cannot succeed.
var ErrInvalidRecord = errors.New("invalid record")

// CanonicalRecord is the contact record upserted into the record store.
// Entity plus Email form the natural key for idempotent upserts.
type CanonicalRecord struct {
	Entity  string
	Email   string
	Phone   string
	Name    string
	Source  string
	Message string
}

// RecordStore keeps canonical contact records. Upsert is idempotent on the
// (entity, email) natural key and returns the record's stable ID.
type RecordStore interface {
	Upsert(ctx context.Context, record CanonicalRecord) (string, error)
}

// NotificationSink delivers outbound messages. Fire-and-forget: delivery
// retries beyond the returned error are owned by the sink itself.
type NotificationSink interface {
	Notify(ctx context.Context, templateKey, recipient string, templateCtx map[string]string) error
}
