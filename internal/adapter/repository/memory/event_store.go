// Package memory provides an in-process journal.Store. It backs the
// STORE_BACKEND=memory mode and the test suite.
package memory

import (
	"context"
	"sync"

	"github.com/corebank/corebank/internal/domain"
	"github.com/corebank/corebank/internal/journal"
)

type record struct {
	kind    string
	payload []byte
}

// EventStore implements journal.Store with an in-memory map of streams.
// Events are kept in encoded form so the store exercises the same codec path
// as the durable backends.
type EventStore struct {
	mu      sync.RWMutex
	streams map[string][]record
}

// NewEventStore creates an empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{streams: make(map[string][]record)}
}

// Append appends an event to the stream.
func (s *EventStore) Append(ctx context.Context, streamID string, event domain.Event) error {
	kind, payload, err := journal.Encode(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[streamID] = append(s.streams[streamID], record{kind: kind, payload: payload})
	return nil
}

// Load returns all events of the stream in append order.
func (s *EventStore) Load(ctx context.Context, streamID string) ([]domain.Event, error) {
	s.mu.RLock()
	records := s.streams[streamID]
	s.mu.RUnlock()

	events := make([]domain.Event, 0, len(records))
	for _, rec := range records {
		event, err := journal.Decode(rec.kind, rec.payload)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}
