package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nyralabs/contact-pipeline/internal/domain"
)

// PostgresStore persists workflow instances in postgres. History is stored
// as a jsonb column; the append-only invariant is enforced by the state
// machine, not the database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Create inserts a new instance row.
func (s *PostgresStore) Create(ctx context.Context, instance *domain.WorkflowInstance) error {
	history, err := json.Marshal(instance.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	const query = `
        INSERT INTO workflow_instances (event_id, entity, current_state, attempt_count, last_error, history, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err = s.pool.Exec(ctx, query,
		instance.EventID,
		instance.Entity,
		string(instance.CurrentState),
		instance.AttemptCount,
		instance.LastError,
		history,
		instance.CreatedAt,
		instance.UpdatedAt,
	)
	return err
}

// Get loads an instance by event ID.
func (s *PostgresStore) Get(ctx context.Context, eventID string) (*domain.WorkflowInstance, error) {
	const query = `
        SELECT event_id, entity, current_state, attempt_count, last_error, history, created_at, updated_at
        FROM workflow_instances WHERE event_id=$1`

	var (
		instance domain.WorkflowInstance
		state    string
		history  []byte
	)
	err := s.pool.QueryRow(ctx, query, eventID).Scan(
		&instance.EventID,
		&instance.Entity,
		&state,
		&instance.AttemptCount,
		&instance.LastError,
		&history,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	instance.CurrentState = domain.State(state)
	if err := json.Unmarshal(history, &instance.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return &instance, nil
}

// Update rewrites the instance row with the latest snapshot.
func (s *PostgresStore) Update(ctx context.Context, instance *domain.WorkflowInstance) error {
	history, err := json.Marshal(instance.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	const query = `
        UPDATE workflow_instances
        SET current_state=$2, attempt_count=$3, last_error=$4, history=$5, updated_at=$6
        WHERE event_id=$1`
	tag, err := s.pool.Exec(ctx, query,
		instance.EventID,
		string(instance.CurrentState),
		instance.AttemptCount,
		instance.LastError,
		history,
		instance.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInstanceNotFound
	}
	return nil
}
