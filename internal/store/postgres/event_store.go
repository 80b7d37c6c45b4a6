package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL: the append-only
// audit log external consumers use to reconstruct bond state.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Emit appends an event.
func (s *EventStore) Emit(ctx context.Context, ev domain.Event) error {
	var detail []byte
	if ev.Detail != nil {
		var err error
		detail, err = json.Marshal(ev.Detail)
		if err != nil {
			return fmt.Errorf("postgres: marshal event detail: %w", err)
		}
	}

	const query = `
		INSERT INTO bond_events (id, event_type, bond_id, actor, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.pool.Exec(ctx, query,
		ev.ID, string(ev.Type), nullBondID(ev.BondID), ev.Actor.Hex(), detail, ev.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: append event %s: %w", ev.Type, err)
	}
	return nil
}

// ListByBond returns events for one bond in append order.
func (s *EventStore) ListByBond(ctx context.Context, bondID int64, opts domain.ListOpts) ([]domain.Event, error) {
	const query = `
		SELECT id, event_type, COALESCE(bond_id, 0), actor, detail, created_at
		FROM bond_events WHERE bond_id = $1
		ORDER BY created_at, id LIMIT $2 OFFSET $3`
	return s.queryEvents(ctx, query, bondID, limitOf(opts), opts.Offset)
}

// List returns all events in append order.
func (s *EventStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	const query = `
		SELECT id, event_type, COALESCE(bond_id, 0), actor, detail, created_at
		FROM bond_events ORDER BY created_at, id LIMIT $1 OFFSET $2`
	return s.queryEvents(ctx, query, limitOf(opts), opts.Offset)
}

func (s *EventStore) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	var list []domain.Event
	for rows.Next() {
		var (
			ev     domain.Event
			typ    string
			actor  string
			detail []byte
		)
		if err := rows.Scan(&ev.ID, &typ, &ev.BondID, &actor, &detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		ev.Type = domain.EventType(typ)
		ev.Actor = common.HexToAddress(actor)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &ev.Detail); err != nil {
				return nil, fmt.Errorf("postgres: decode event detail: %w", err)
			}
		}
		list = append(list, ev)
	}
	return list, rows.Err()
}

func limitOf(opts domain.ListOpts) int {
	if opts.Limit <= 0 {
		return 100
	}
	return opts.Limit
}

// nullBondID maps the zero bond id (registry events) to NULL.
func nullBondID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

// Compile-time interface check.
var _ domain.EventStore = (*EventStore)(nil)
