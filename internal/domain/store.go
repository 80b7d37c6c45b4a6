package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// BondStore persists bond aggregates. Get and List return deep copies; a
// mutation only takes effect through Save, which persists the whole
// aggregate (bond fields and challenge queue) atomically.
type BondStore interface {
	// Create assigns the next monotonic id, persists the bond, and returns
	// the id.
	Create(ctx context.Context, bond *Bond) (int64, error)
	Get(ctx context.Context, id int64) (*Bond, error)
	Save(ctx context.Context, bond *Bond) error
	List(ctx context.Context, opts ListOpts) ([]*Bond, error)
	ListUnsettled(ctx context.Context) ([]*Bond, error)
}

// JudgeStore persists judge registrations. Get returns ErrNotFound for a
// judge that has never been seen.
type JudgeStore interface {
	Get(ctx context.Context, judge common.Address) (JudgeRegistration, error)
	Put(ctx context.Context, reg JudgeRegistration) error
}

// EventStore persists the append-only audit log. It doubles as an EventSink
// so the ledger can fan events straight into it.
type EventStore interface {
	EventSink
	ListByBond(ctx context.Context, bondID int64, opts ListOpts) ([]Event, error)
	List(ctx context.Context, opts ListOpts) ([]Event, error)
}
