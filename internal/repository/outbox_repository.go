package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"marketplace/internal/domain"

	"github.com/google/uuid"
)

// OutboxRepository is the relay's view of outbox_events
type OutboxRepository interface {
	ListUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
}

type outboxRepository struct {
	db *sql.DB
}

// NewOutboxRepository creates a new instance of OutboxRepository
func NewOutboxRepository(db *sql.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

// ListUnpublished returns up to limit pending events, oldest first
func (r *outboxRepository) ListUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, event_key, payload, created_at, published_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at ASC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox events: %w", err)
	}
	defer rows.Close()

	events := []*domain.OutboxEvent{}
	for rows.Next() {
		event := &domain.OutboxEvent{}
		var payload []byte
		if err := rows.Scan(
			&event.ID,
			&event.AggregateID,
			&event.EventType,
			&event.Key,
			&payload,
			&event.CreatedAt,
			&event.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		event.Payload = payload
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox events: %w", err)
	}

	return events, nil
}

// MarkPublished stamps the event so the relay skips it from now on
func (r *outboxRepository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET published_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event published: %w", err)
	}
	return nil
}

func insertOutboxEvents(ctx context.Context, q querier, events []*domain.OutboxEvent) error {
	for _, e := range events {
		_, err := q.ExecContext(ctx, `
			INSERT INTO outbox_events (id, aggregate_id, event_type, event_key, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, e.ID, e.AggregateID, e.EventType, e.Key, string(e.Payload), e.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to write outbox event: %w", err)
		}
	}
	return nil
}
