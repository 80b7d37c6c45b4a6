package memstore

import (
	"context"
	"sync"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

// EventStore is an in-memory append-only audit log.
type EventStore struct {
	mu     sync.RWMutex
	events []domain.Event
}

// NewEventStore creates an empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// Emit appends an event.
func (s *EventStore) Emit(_ context.Context, ev domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// ListByBond returns events for one bond in append order.
func (s *EventStore) ListByBond(_ context.Context, bondID int64, opts domain.ListOpts) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Event
	for _, ev := range s.events {
		if ev.BondID == bondID {
			out = append(out, ev)
		}
	}
	return page(out, opts), nil
}

// List returns all events in append order.
func (s *EventStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return page(out, opts), nil
}

func page(events []domain.Event, opts domain.ListOpts) []domain.Event {
	if opts.Offset > 0 {
		if opts.Offset >= len(events) {
			return nil
		}
		events = events[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(events) {
		events = events[:opts.Limit]
	}
	return events
}

// Compile-time interface check.
var _ domain.EventStore = (*EventStore)(nil)
