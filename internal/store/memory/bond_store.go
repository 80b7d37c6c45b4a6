// Package memstore implements the domain store interfaces with in-process
// maps. It backs the test suite and the "memory" operating mode; the
// postgres package provides the durable equivalents.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

// BondStore is an in-memory domain.BondStore with monotonic id assignment.
type BondStore struct {
	mu     sync.RWMutex
	nextID int64
	bonds  map[int64]*domain.Bond
}

// NewBondStore creates an empty BondStore. Ids start at 1.
func NewBondStore() *BondStore {
	return &BondStore{nextID: 1, bonds: make(map[int64]*domain.Bond)}
}

// Create assigns the next id and stores a deep copy of the bond.
func (s *BondStore) Create(_ context.Context, bond *domain.Bond) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	bond.ID = id
	s.bonds[id] = bond.Clone()
	return id, nil
}

// Get returns a deep copy of the bond with the given id.
func (s *BondStore) Get(_ context.Context, id int64) (*domain.Bond, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bonds[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b.Clone(), nil
}

// Save replaces the stored aggregate with a deep copy of bond.
func (s *BondStore) Save(_ context.Context, bond *domain.Bond) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bonds[bond.ID]; !ok {
		return domain.ErrNotFound
	}
	s.bonds[bond.ID] = bond.Clone()
	return nil
}

// List returns bonds in id order.
func (s *BondStore) List(_ context.Context, opts domain.ListOpts) ([]*domain.Bond, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sorted()
	if opts.Offset > 0 {
		if opts.Offset >= len(all) {
			return nil, nil
		}
		all = all[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	out := make([]*domain.Bond, len(all))
	for i, b := range all {
		out[i] = b.Clone()
	}
	return out, nil
}

// ListUnsettled returns every bond that has not yet settled, in id order.
func (s *BondStore) ListUnsettled(_ context.Context) ([]*domain.Bond, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Bond
	for _, b := range s.sorted() {
		if !b.Settled {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (s *BondStore) sorted() []*domain.Bond {
	all := make([]*domain.Bond, 0, len(s.bonds))
	for _, b := range s.bonds {
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

// Compile-time interface check.
var _ domain.BondStore = (*BondStore)(nil)
