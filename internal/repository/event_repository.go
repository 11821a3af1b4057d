package repository

import (
	"context"

	"github.com/spec-kit/tms/internal/events"
)

type eventOutboxRepository struct {
	db DB
}

// NewEventOutboxRepository returns a Postgres-backed events.Store.
func NewEventOutboxRepository(db DB) events.Store {
	return &eventOutboxRepository{db: db}
}

func (r *eventOutboxRepository) Insert(ctx context.Context, event *events.Event) error {
	const query = `
        INSERT INTO event_outbox (id, name, data, created_at)
        VALUES ($1, $2, $3, $4)`
	_, err := r.db.Exec(ctx, query, event.ID, event.Name, event.Data, event.CreatedAt)
	return err
}

func (r *eventOutboxRepository) ListUndelivered(ctx context.Context, limit int) ([]events.Event, error) {
	const query = `
        SELECT id, name, data, created_at
        FROM event_outbox
        WHERE delivered_at IS NULL
        ORDER BY created_at
        LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pending := make([]events.Event, 0)
	for rows.Next() {
		var event events.Event
		if err := rows.Scan(&event.ID, &event.Name, &event.Data, &event.CreatedAt); err != nil {
			return nil, err
		}
		pending = append(pending, event)
	}
	return pending, rows.Err()
}

func (r *eventOutboxRepository) MarkDelivered(ctx context.Context, id string) error {
	const query = `UPDATE event_outbox SET delivered_at=NOW() WHERE id=$1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
