package memstore

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

// JudgeStore is an in-memory domain.JudgeStore.
type JudgeStore struct {
	mu     sync.RWMutex
	judges map[common.Address]domain.JudgeRegistration
}

// NewJudgeStore creates an empty JudgeStore.
func NewJudgeStore() *JudgeStore {
	return &JudgeStore{judges: make(map[common.Address]domain.JudgeRegistration)}
}

// Get returns the registration for judge, or ErrNotFound.
func (s *JudgeStore) Get(_ context.Context, judge common.Address) (domain.JudgeRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.judges[judge]
	if !ok {
		return domain.JudgeRegistration{}, domain.ErrNotFound
	}
	return reg.Clone(), nil
}

// Put upserts a registration.
func (s *JudgeStore) Put(_ context.Context, reg domain.JudgeRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.judges[reg.Judge] = reg.Clone()
	return nil
}

// Compile-time interface check.
var _ domain.JudgeStore = (*JudgeStore)(nil)
