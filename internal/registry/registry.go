// Package registry implements the judge registry: mutable key-value
// configuration consulted by the ledger at bond creation only. It is
// deliberately outside the bond aggregate — deregistering never cascades
// into bonds that already name the judge.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

// Registry manages judge registrations and per-asset minimum fees.
type Registry struct {
	judges domain.JudgeStore
	sinks  []domain.EventSink
	logger *slog.Logger
}

// New creates a Registry over the given store.
func New(judges domain.JudgeStore, logger *slog.Logger, sinks ...domain.EventSink) *Registry {
	return &Registry{
		judges: judges,
		sinks:  sinks,
		logger: logger.With(slog.String("component", "registry")),
	}
}

// Register marks the caller as an available judge. Registering an already
// registered judge is a no-op that succeeds.
func (r *Registry) Register(ctx context.Context, caller common.Address) error {
	reg, err := r.load(ctx, caller)
	if err != nil {
		return err
	}
	if reg.Registered {
		return nil
	}
	reg.Registered = true
	if err := r.judges.Put(ctx, reg); err != nil {
		return fmt.Errorf("registry: register %s: %w", caller.Hex(), err)
	}
	r.logger.InfoContext(ctx, "judge registered", slog.String("judge", caller.Hex()))
	r.emit(ctx, domain.EventJudgeRegistered, caller, nil)
	return nil
}

// Deregister removes the caller from the pool of judges available for new
// bonds. Existing bonds naming them are untouched.
func (r *Registry) Deregister(ctx context.Context, caller common.Address) error {
	reg, err := r.load(ctx, caller)
	if err != nil {
		return err
	}
	if !reg.Registered {
		return nil
	}
	reg.Registered = false
	if err := r.judges.Put(ctx, reg); err != nil {
		return fmt.Errorf("registry: deregister %s: %w", caller.Hex(), err)
	}
	r.logger.InfoContext(ctx, "judge deregistered", slog.String("judge", caller.Hex()))
	r.emit(ctx, domain.EventJudgeDeregistered, caller, nil)
	return nil
}

// SetMinFee sets the caller's minimum fee for one asset. A judge may set fees
// whether or not currently registered; the value only matters when a bond
// names them.
func (r *Registry) SetMinFee(ctx context.Context, caller, asset common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return domain.ErrInvalidAmount
	}
	reg, err := r.load(ctx, caller)
	if err != nil {
		return err
	}
	if reg.MinFees == nil {
		reg.MinFees = make(map[common.Address]*big.Int)
	}
	reg.MinFees[asset] = new(big.Int).Set(amount)
	if err := r.judges.Put(ctx, reg); err != nil {
		return fmt.Errorf("registry: set min fee %s: %w", caller.Hex(), err)
	}
	r.emit(ctx, domain.EventJudgeFeeUpdated, caller, map[string]any{
		"asset":   asset.Hex(),
		"min_fee": amount.String(),
	})
	return nil
}

// IsRegistered answers whether the judge is currently registered.
func (r *Registry) IsRegistered(ctx context.Context, judge common.Address) (bool, error) {
	reg, err := r.judges.Get(ctx, judge)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return reg.Registered, nil
}

// MinFee returns the judge's minimum fee for an asset, zero when unset.
func (r *Registry) MinFee(ctx context.Context, judge, asset common.Address) (*big.Int, error) {
	reg, err := r.judges.Get(ctx, judge)
	if errors.Is(err, domain.ErrNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return reg.MinFee(asset), nil
}

// Get returns the full registration record for a judge.
func (r *Registry) Get(ctx context.Context, judge common.Address) (domain.JudgeRegistration, error) {
	return r.judges.Get(ctx, judge)
}

// load fetches an existing registration or starts a blank one.
func (r *Registry) load(ctx context.Context, judge common.Address) (domain.JudgeRegistration, error) {
	reg, err := r.judges.Get(ctx, judge)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.JudgeRegistration{Judge: judge}, nil
	}
	if err != nil {
		return domain.JudgeRegistration{}, fmt.Errorf("registry: load %s: %w", judge.Hex(), err)
	}
	return reg, nil
}

func (r *Registry) emit(ctx context.Context, typ domain.EventType, actor common.Address, detail map[string]any) {
	ev := domain.Event{
		ID:        uuid.New().String(),
		Type:      typ,
		Actor:     actor,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	for _, sink := range r.sinks {
		if err := sink.Emit(ctx, ev); err != nil {
			r.logger.ErrorContext(ctx, "event sink failed",
				slog.String("event", string(typ)),
				slog.String("error", err.Error()),
			)
		}
	}
}
