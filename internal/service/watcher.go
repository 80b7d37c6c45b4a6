// Package service hosts the background workers that run alongside the API:
// the settlement watcher and the archive worker.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

// TimeoutClaimer is the single ledger operation the watcher invokes.
type TimeoutClaimer interface {
	ClaimTimeout(ctx context.Context, caller common.Address, bondID int64) error
}

// sweepLockKey guards the sweep across service instances so only one
// replica auto-claims at a time.
const sweepLockKey = "watcher:sweep"

// Watcher scans unsettled bonds for judges that failed to rule in time.
// Overdue bonds are logged, and when auto-claim is enabled the watcher
// settles them itself on behalf of the operator address. Timeout settlement
// is permissionless, so any caller address is valid.
type Watcher struct {
	bonds     domain.BondStore
	ledger    TimeoutClaimer
	operator  common.Address
	autoClaim bool
	locks     domain.LockManager
	lockTTL   time.Duration
	pollDur   time.Duration
	logger    *slog.Logger
}

// NewWatcher creates a Watcher. The lock manager may be nil, in which case
// sweeps are not coordinated across instances. pollInterval defaults to 2
// minutes when not positive.
func NewWatcher(
	bonds domain.BondStore,
	ledger TimeoutClaimer,
	operator common.Address,
	autoClaim bool,
	locks domain.LockManager,
	lockTTL time.Duration,
	pollInterval time.Duration,
	logger *slog.Logger,
) *Watcher {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Minute
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Watcher{
		bonds:     bonds,
		ledger:    ledger,
		operator:  operator,
		autoClaim: autoClaim,
		locks:     locks,
		lockTTL:   lockTTL,
		pollDur:   pollInterval,
		logger:    logger.With(slog.String("component", "watcher")),
	}
}

// Run polls unsettled bonds until the context is cancelled. Call in a
// goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollDur)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.ErrorContext(ctx, "sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// sweep checks every unsettled bond once. When a lock manager is present the
// whole sweep runs under a shared lock; losing the race to another instance
// is not an error.
func (w *Watcher) sweep(ctx context.Context) error {
	if w.locks != nil {
		unlock, err := w.locks.Acquire(ctx, sweepLockKey, w.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return nil
			}
			return err
		}
		defer unlock()
	}

	open, err := w.bonds.ListUnsettled(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, b := range open {
		if !b.HasPending() {
			continue
		}
		deadline := b.RulingDeadline()
		if !now.After(deadline) {
			continue
		}

		w.logger.WarnContext(ctx, "ruling overdue",
			slog.Int64("bond_id", b.ID),
			slog.String("judge", b.Judge.Hex()),
			slog.Time("ruling_deadline", deadline),
		)

		if !w.autoClaim {
			continue
		}
		if err := w.ledger.ClaimTimeout(ctx, w.operator, b.ID); err != nil {
			// Another caller may have settled the bond between the list
			// and the claim.
			if errors.Is(err, domain.ErrSettled) {
				continue
			}
			w.logger.ErrorContext(ctx, "auto claim failed",
				slog.Int64("bond_id", b.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		w.logger.InfoContext(ctx, "timeout claimed",
			slog.Int64("bond_id", b.ID),
		)
	}
	return nil
}
