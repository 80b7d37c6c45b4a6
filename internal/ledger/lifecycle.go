package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

// CreateBondParams carries every creation-time parameter. All three amounts
// are fixed for the life of the bond.
type CreateBondParams struct {
	Asset           common.Address
	BondAmount      *big.Int
	ChallengeAmount *big.Int
	MaxJudgeFee     *big.Int
	Judge           common.Address
	Deadline        time.Time
	AcceptanceDelay time.Duration
	RulingBuffer    time.Duration
	ClaimText       string
}

// CreateBond validates the parameters, debits the bond amount from the caller
// into custody, and allocates a new bond with a sequential id.
func (l *Ledger) CreateBond(ctx context.Context, caller common.Address, p CreateBondParams) (int64, error) {
	if p.BondAmount == nil || p.BondAmount.Sign() <= 0 {
		return 0, fmt.Errorf("ledger: bond amount: %w", domain.ErrInvalidAmount)
	}
	if p.ChallengeAmount == nil || p.ChallengeAmount.Sign() <= 0 {
		return 0, fmt.Errorf("ledger: challenge amount: %w", domain.ErrInvalidAmount)
	}
	if p.Judge == (common.Address{}) {
		return 0, domain.ErrZeroJudge
	}
	if !p.Deadline.After(l.now()) {
		return 0, domain.ErrDeadlineNotFuture
	}
	if p.RulingBuffer <= 0 {
		return 0, domain.ErrInvalidBuffer
	}
	maxFee := p.MaxJudgeFee
	if maxFee == nil {
		maxFee = new(big.Int)
	}
	if maxFee.Sign() < 0 || maxFee.Cmp(p.ChallengeAmount) > 0 {
		return 0, domain.ErrFeeExceedsMax
	}

	// Registry gate, consulted only here. Deregistration later never touches
	// this bond.
	reg, err := l.judges.Get(ctx, p.Judge)
	if err != nil || !reg.Registered {
		return 0, domain.ErrJudgeNotRegistered
	}
	if maxFee.Cmp(reg.MinFee(p.Asset)) < 0 {
		return 0, domain.ErrFeeBelowMinimum
	}

	if err := l.bank.Debit(ctx, p.Asset, caller, p.BondAmount); err != nil {
		return 0, fmt.Errorf("ledger: collateral debit: %w", err)
	}

	bond := &domain.Bond{
		Poster:          caller,
		Judge:           p.Judge,
		Asset:           p.Asset,
		BondAmount:      new(big.Int).Set(p.BondAmount),
		ChallengeAmount: new(big.Int).Set(p.ChallengeAmount),
		MaxJudgeFee:     new(big.Int).Set(maxFee),
		Deadline:        p.Deadline,
		AcceptanceDelay: p.AcceptanceDelay,
		RulingBuffer:    p.RulingBuffer,
		ClaimText:       p.ClaimText,
		CreatedAt:       l.now(),
	}

	id, err := l.bonds.Create(ctx, bond)
	if err != nil {
		return 0, fmt.Errorf("ledger: create bond: %w", err)
	}

	l.logger.InfoContext(ctx, "bond created",
		slog.Int64("bond_id", id),
		slog.String("poster", caller.Hex()),
		slog.String("judge", p.Judge.Hex()),
		slog.String("bond_amount", p.BondAmount.String()),
	)
	l.emit(ctx, domain.EventBondCreated, id, caller, map[string]any{
		"judge":            p.Judge.Hex(),
		"asset":            p.Asset.Hex(),
		"bond_amount":      p.BondAmount.String(),
		"challenge_amount": p.ChallengeAmount.String(),
		"max_judge_fee":    maxFee.String(),
		"deadline":         p.Deadline,
		"acceptance_delay": p.AcceptanceDelay.String(),
		"ruling_buffer":    p.RulingBuffer.String(),
		"claim":            p.ClaimText,
	})
	return id, nil
}

// Challenge stakes the challenge amount against a bond's claim and appends a
// pending entry to the FIFO queue. Any caller may challenge, any number of
// times; each call is an independent queue entry.
func (l *Ledger) Challenge(ctx context.Context, caller common.Address, bondID int64, reason string) error {
	unlock := l.locks.lock(bondID)
	defer unlock()

	b, err := l.loadOpen(ctx, bondID)
	if err != nil {
		return err
	}
	now := l.now()
	if now.After(b.Deadline) {
		return domain.ErrPastDeadline
	}

	if err := l.bank.Debit(ctx, b.Asset, caller, b.ChallengeAmount); err != nil {
		return fmt.Errorf("ledger: challenge stake debit: %w", err)
	}

	b.Challenges = append(b.Challenges, domain.Challenge{
		Challenger: caller,
		Status:     domain.ChallengePending,
		Reason:     reason,
		CreatedAt:  now,
	})
	b.LastChallengeAt = now

	if err := l.bonds.Save(ctx, b); err != nil {
		return fmt.Errorf("ledger: save challenge: %w", err)
	}

	l.logger.InfoContext(ctx, "bond challenged",
		slog.Int64("bond_id", bondID),
		slog.String("challenger", caller.Hex()),
		slog.Int("queue_len", len(b.Challenges)),
	)
	l.emit(ctx, domain.EventBondChallenged, bondID, caller, map[string]any{
		"challenge_index": len(b.Challenges) - 1,
		"amount":          b.ChallengeAmount.String(),
		"reason":          reason,
	})
	return nil
}

// Concede is the poster's public admission of error: always free, always
// available until the judge has issued the first ruling. It returns the bond
// to the poster and refunds every pending challenge; the judge gets nothing.
//
// The precondition order (settled, conceded, caller, pending-exists,
// cursor==0) is observable through which error surfaces first and must not
// be rearranged.
func (l *Ledger) Concede(ctx context.Context, caller common.Address, bondID int64, statement string) error {
	unlock := l.locks.lock(bondID)
	defer unlock()

	b, err := l.loadOpen(ctx, bondID)
	if err != nil {
		return err
	}
	if caller != b.Poster {
		return domain.ErrNotPoster
	}
	if !b.HasPending() {
		return domain.ErrNoPendingChallenges
	}
	if b.Cursor != 0 {
		return domain.ErrRulingStarted
	}

	if err := l.credit(ctx, b.Asset, b.Poster, b.BondAmount); err != nil {
		return fmt.Errorf("ledger: concede payout: %w", err)
	}
	refunded, err := l.refundPending(ctx, b)
	if err != nil {
		return fmt.Errorf("ledger: concede refunds: %w", err)
	}

	b.Conceded = true
	l.settle(b)

	if err := l.bonds.Save(ctx, b); err != nil {
		return fmt.Errorf("ledger: save concession: %w", err)
	}

	l.logger.InfoContext(ctx, "bond conceded",
		slog.Int64("bond_id", bondID),
		slog.Int("refunded", len(refunded)),
	)
	l.emit(ctx, domain.EventBondConceded, bondID, caller, map[string]any{
		"statement": statement,
		"refunded":  len(refunded),
	})
	l.emitRefunds(ctx, b, refunded)
	return nil
}

// WithdrawBond lets the poster reclaim the collateral once no challenge is
// pending: either nobody challenged, or every challenge has been resolved.
func (l *Ledger) WithdrawBond(ctx context.Context, caller common.Address, bondID int64) error {
	unlock := l.locks.lock(bondID)
	defer unlock()

	b, err := l.loadOpen(ctx, bondID)
	if err != nil {
		return err
	}
	if caller != b.Poster {
		return domain.ErrNotPoster
	}
	if b.HasPending() {
		return domain.ErrPendingChallenges
	}

	if err := l.credit(ctx, b.Asset, b.Poster, b.BondAmount); err != nil {
		return fmt.Errorf("ledger: withdrawal payout: %w", err)
	}
	l.settle(b)

	if err := l.bonds.Save(ctx, b); err != nil {
		return fmt.Errorf("ledger: save withdrawal: %w", err)
	}

	l.logger.InfoContext(ctx, "bond withdrawn", slog.Int64("bond_id", bondID))
	l.emit(ctx, domain.EventBondWithdrawn, bondID, caller, map[string]any{
		"amount": b.BondAmount.String(),
	})
	return nil
}

// ClaimTimeout settles a bond whose judge failed to rule before the ruling
// deadline. Anyone may call it. The poster recovers the collateral, every
// pending challenger is refunded, and the judge receives nothing — the lost
// fee is the penalty for inaction.
func (l *Ledger) ClaimTimeout(ctx context.Context, caller common.Address, bondID int64) error {
	unlock := l.locks.lock(bondID)
	defer unlock()

	b, err := l.loadOpen(ctx, bondID)
	if err != nil {
		return err
	}
	if !b.HasPending() {
		return domain.ErrNoPendingChallenges
	}
	if !l.now().After(b.RulingDeadline()) {
		return domain.ErrTimeoutNotReached
	}

	if err := l.credit(ctx, b.Asset, b.Poster, b.BondAmount); err != nil {
		return fmt.Errorf("ledger: timeout payout: %w", err)
	}
	refunded, err := l.refundPending(ctx, b)
	if err != nil {
		return fmt.Errorf("ledger: timeout refunds: %w", err)
	}
	l.settle(b)

	if err := l.bonds.Save(ctx, b); err != nil {
		return fmt.Errorf("ledger: save timeout: %w", err)
	}

	l.logger.InfoContext(ctx, "bond timed out",
		slog.Int64("bond_id", bondID),
		slog.String("claimed_by", caller.Hex()),
		slog.Int("refunded", len(refunded)),
	)
	l.emit(ctx, domain.EventBondTimedOut, bondID, caller, map[string]any{
		"refunded": len(refunded),
	})
	l.emitRefunds(ctx, b, refunded)
	return nil
}

// RejectBond is the judge declining the bond outright: monetarily identical
// to a concession but attributed to the judge, and legal even with an empty
// queue. The judge's current registry status is irrelevant — a judge who has
// deregistered may still act on bonds that already name them.
func (l *Ledger) RejectBond(ctx context.Context, caller common.Address, bondID int64) error {
	unlock := l.locks.lock(bondID)
	defer unlock()

	b, err := l.loadOpen(ctx, bondID)
	if err != nil {
		return err
	}
	if caller != b.Judge {
		return domain.ErrNotJudge
	}

	if err := l.credit(ctx, b.Asset, b.Poster, b.BondAmount); err != nil {
		return fmt.Errorf("ledger: rejection payout: %w", err)
	}
	refunded, err := l.refundPending(ctx, b)
	if err != nil {
		return fmt.Errorf("ledger: rejection refunds: %w", err)
	}
	l.settle(b)

	if err := l.bonds.Save(ctx, b); err != nil {
		return fmt.Errorf("ledger: save rejection: %w", err)
	}

	l.logger.InfoContext(ctx, "bond rejected by judge",
		slog.Int64("bond_id", bondID),
		slog.Int("refunded", len(refunded)),
	)
	l.emit(ctx, domain.EventBondRejected, bondID, caller, map[string]any{
		"refunded": len(refunded),
	})
	l.emitRefunds(ctx, b, refunded)
	return nil
}
