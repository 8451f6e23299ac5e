// Package postgres implements the durable journal.Store on PostgreSQL.
// Events are append-only rows keyed by a ULID, so a stream's append order is
// the lexicographic order of its row ids.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/corebank/corebank/internal/domain"
	"github.com/corebank/corebank/internal/journal"
)

// EventStore implements journal.Store backed by a pgx connection pool.
type EventStore struct {
	pool    *pgxpool.Pool
	retrier *Retrier
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{
		pool:    pool,
		retrier: NewRetrier(),
	}
}

// Append appends an event to the stream.
func (s *EventStore) Append(ctx context.Context, streamID string, event domain.Event) error {
	kind, payload, err := journal.Encode(event)
	if err != nil {
		return err
	}

	id := ulid.Make().String()

	return s.retrier.Retry(ctx, func() error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO events (id, stream_id, kind, payload) VALUES ($1, $2, $3, $4)`,
			id, streamID, kind, payload,
		)
		if err != nil {
			return fmt.Errorf("failed to append event to stream %s: %w", streamID, err)
		}
		return nil
	})
}

// Load returns all events of the stream in append order.
func (s *EventStore) Load(ctx context.Context, streamID string) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT kind, payload FROM events WHERE stream_id = $1 ORDER BY id`,
		streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load stream %s: %w", streamID, err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			kind    string
			payload []byte
		)
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		event, err := journal.Decode(kind, payload)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stream %s: %w", streamID, err)
	}
	return events, nil
}
