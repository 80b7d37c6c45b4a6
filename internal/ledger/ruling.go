package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

// gateRuling applies every precondition shared by the two ruling operations
// and returns the bond with the cursor entry verified pending. Rulings only
// ever target the challenge at the cursor; there is no way to rule out of
// order or skip ahead.
func (l *Ledger) gateRuling(ctx context.Context, caller common.Address, bondID int64, fee *big.Int) (*domain.Bond, error) {
	b, err := l.loadOpen(ctx, bondID)
	if err != nil {
		return nil, err
	}
	if caller != b.Judge {
		return nil, domain.ErrNotJudge
	}
	if fee.Sign() < 0 || fee.Cmp(b.MaxJudgeFee) > 0 {
		return nil, domain.ErrFeeExceedsMax
	}

	now := l.now()
	if now.Before(b.RulingWindowStart()) {
		return nil, domain.ErrBeforeWindow
	}
	if now.After(b.RulingDeadline()) {
		return nil, domain.ErrPastRulingDeadline
	}

	cur := b.Current()
	if cur == nil {
		return nil, domain.ErrNoPendingChallenges
	}
	// The cursor invariant says this entry must be pending; verify anyway
	// rather than trust a corrupted invariant with money on the line.
	if cur.Status != domain.ChallengePending {
		return nil, domain.ErrChallengeNotPending
	}
	return b, nil
}

// RuleForPoster resolves the current challenge against the challenger: the
// stake minus the judge's fee goes to the poster, the fee to the judge, and
// the cursor advances. The bond stays open with its collateral intact, so
// later challenges, withdrawal — or further rulings — remain possible.
func (l *Ledger) RuleForPoster(ctx context.Context, caller common.Address, bondID int64, fee *big.Int) error {
	unlock := l.locks.lock(bondID)
	defer unlock()

	if fee == nil {
		fee = new(big.Int)
	}
	b, err := l.gateRuling(ctx, caller, bondID, fee)
	if err != nil {
		return err
	}

	posterShare := new(big.Int).Sub(b.ChallengeAmount, fee)
	if err := l.credit(ctx, b.Asset, b.Poster, posterShare); err != nil {
		return fmt.Errorf("ledger: ruling payout to poster: %w", err)
	}
	if err := l.credit(ctx, b.Asset, b.Judge, fee); err != nil {
		return fmt.Errorf("ledger: judge fee: %w", err)
	}

	idx := b.Cursor
	b.Challenges[idx].Status = domain.ChallengeLost
	b.Cursor++

	if err := l.bonds.Save(ctx, b); err != nil {
		return fmt.Errorf("ledger: save ruling: %w", err)
	}

	l.logger.InfoContext(ctx, "ruled for poster",
		slog.Int64("bond_id", bondID),
		slog.Int("challenge_index", idx),
		slog.String("fee", fee.String()),
	)
	l.emit(ctx, domain.EventRuledForPoster, bondID, caller, map[string]any{
		"challenge_index": idx,
		"challenger":      b.Challenges[idx].Challenger.Hex(),
		"poster_share":    posterShare.String(),
		"fee":             fee.String(),
	})
	return nil
}

// RuleForChallenger resolves the current challenge in the challenger's
// favor: the whole pot for that pairing — collateral plus stake, minus the
// judge's fee — goes to the winning challenger and the bond settles
// immediately. Every later pending challenger is refunded rather than
// adjudicated: the claim is presumed wrong the moment one challenger proves
// it, and the pot is gone.
func (l *Ledger) RuleForChallenger(ctx context.Context, caller common.Address, bondID int64, fee *big.Int) error {
	unlock := l.locks.lock(bondID)
	defer unlock()

	if fee == nil {
		fee = new(big.Int)
	}
	b, err := l.gateRuling(ctx, caller, bondID, fee)
	if err != nil {
		return err
	}

	idx := b.Cursor
	winner := b.Challenges[idx].Challenger

	payout := new(big.Int).Add(b.BondAmount, b.ChallengeAmount)
	payout.Sub(payout, fee)
	if err := l.credit(ctx, b.Asset, winner, payout); err != nil {
		return fmt.Errorf("ledger: winning payout: %w", err)
	}
	if err := l.credit(ctx, b.Asset, b.Judge, fee); err != nil {
		return fmt.Errorf("ledger: judge fee: %w", err)
	}

	b.Challenges[idx].Status = domain.ChallengeWon
	b.Cursor++

	refunded, err := l.refundPending(ctx, b)
	if err != nil {
		return fmt.Errorf("ledger: late-challenger refunds: %w", err)
	}
	l.settle(b)

	if err := l.bonds.Save(ctx, b); err != nil {
		return fmt.Errorf("ledger: save ruling: %w", err)
	}

	l.logger.InfoContext(ctx, "ruled for challenger",
		slog.Int64("bond_id", bondID),
		slog.Int("challenge_index", idx),
		slog.String("winner", winner.Hex()),
		slog.String("payout", payout.String()),
		slog.Int("refunded", len(refunded)),
	)
	l.emit(ctx, domain.EventRuledForChallenger, bondID, caller, map[string]any{
		"challenge_index": idx,
		"challenger":      winner.Hex(),
		"payout":          payout.String(),
		"fee":             fee.String(),
		"refunded":        len(refunded),
	})
	l.emitRefunds(ctx, b, refunded)
	return nil
}
