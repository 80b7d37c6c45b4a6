// Package ledger implements the bond lifecycle state machine: money custody,
// queue ordering, timing windows, and settlement across creation, challenge,
// concession, ruling, withdrawal, and timeout.
//
// Every operation runs under a per-bond lock and is atomic: all precondition
// checks happen before any transfer, all transfers happen before the single
// aggregate save, and a bank failure aborts the operation with no state
// change. Events are emitted last and are best-effort.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

// Ledger owns the authoritative state of every bond. It validates state and
// timing, mutates the aggregate, and issues value-transfer instructions to
// the external bank.
type Ledger struct {
	bonds  domain.BondStore
	judges domain.JudgeStore
	bank   domain.Bank
	sinks  []domain.EventSink
	locks  *keyedLocks
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Ledger. The judge store is consulted only at bond creation;
// sinks receive one event per observable effect.
func New(
	bonds domain.BondStore,
	judges domain.JudgeStore,
	bank domain.Bank,
	logger *slog.Logger,
	sinks ...domain.EventSink,
) *Ledger {
	return &Ledger{
		bonds:  bonds,
		judges: judges,
		bank:   bank,
		sinks:  sinks,
		locks:  newKeyedLocks(),
		logger: logger.With(slog.String("component", "ledger")),
		now:    time.Now,
	}
}

// GetBond returns the bond with the given id.
func (l *Ledger) GetBond(ctx context.Context, id int64) (*domain.Bond, error) {
	return l.bonds.Get(ctx, id)
}

// ListBonds returns bonds in id order.
func (l *Ledger) ListBonds(ctx context.Context, opts domain.ListOpts) ([]*domain.Bond, error) {
	return l.bonds.List(ctx, opts)
}

// loadOpen fetches a bond and applies the two checks shared by every mutating
// operation, in the order every operation performs them: settled first, then
// conceded.
func (l *Ledger) loadOpen(ctx context.Context, id int64) (*domain.Bond, error) {
	b, err := l.bonds.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Settled {
		return nil, domain.ErrSettled
	}
	if b.Conceded {
		return nil, domain.ErrConceded
	}
	return b, nil
}

// credit pays out of custody, skipping zero-value transfers entirely.
func (l *Ledger) credit(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	return l.bank.Credit(ctx, asset, to, amount)
}

// settle marks the bond settled as of now.
func (l *Ledger) settle(b *domain.Bond) {
	now := l.now()
	b.Settled = true
	b.SettledAt = &now
}

// refundPending refunds every still-pending challenge's stake and marks it
// refunded. It returns the refunded indices so the caller can emit one event
// per refund after the save succeeds.
func (l *Ledger) refundPending(ctx context.Context, b *domain.Bond) ([]int, error) {
	idx := b.PendingFrom(0)
	for _, i := range idx {
		if err := l.credit(ctx, b.Asset, b.Challenges[i].Challenger, b.ChallengeAmount); err != nil {
			return nil, err
		}
		b.Challenges[i].Status = domain.ChallengeRefunded
	}
	return idx, nil
}

func (l *Ledger) emit(ctx context.Context, typ domain.EventType, bondID int64, actor common.Address, detail map[string]any) {
	ev := domain.Event{
		ID:        uuid.New().String(),
		Type:      typ,
		BondID:    bondID,
		Actor:     actor,
		Detail:    detail,
		CreatedAt: l.now(),
	}
	for _, sink := range l.sinks {
		if err := sink.Emit(ctx, ev); err != nil {
			l.logger.ErrorContext(ctx, "event sink failed",
				slog.String("event", string(typ)),
				slog.Int64("bond_id", bondID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (l *Ledger) emitRefunds(ctx context.Context, b *domain.Bond, refunded []int) {
	for _, i := range refunded {
		l.emit(ctx, domain.EventChallengeRefunded, b.ID, b.Challenges[i].Challenger, map[string]any{
			"challenge_index": i,
			"amount":          b.ChallengeAmount.String(),
		})
	}
}

// IsTimingError reports whether err is one of the timing errors that resolve
// themselves as time advances.
func IsTimingError(err error) bool {
	return errors.Is(err, domain.ErrBeforeWindow) ||
		errors.Is(err, domain.ErrPastRulingDeadline) ||
		errors.Is(err, domain.ErrPastDeadline) ||
		errors.Is(err, domain.ErrTimeoutNotReached)
}
