// Package domain defines the truthbond entity model: bonds, challenges,
// judge registrations, events, the error taxonomy, and the interfaces
// implemented by the store, bank, cache, and blob adapters.
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Bond is the aggregate root of the escrow mechanism: a poster's financial
// backing of a factual claim, together with its append-only challenge queue.
//
// BondAmount, ChallengeAmount, and MaxJudgeFee are fixed at creation and
// never change afterwards, so the belief thresholds implied by their ratios
// are identical for every challenger in the queue.
type Bond struct {
	ID     int64
	Poster common.Address
	Judge  common.Address
	Asset  common.Address

	BondAmount      *big.Int
	ChallengeAmount *big.Int
	MaxJudgeFee     *big.Int

	// Deadline is the absolute time after which no new challenges are
	// accepted. AcceptanceDelay is the grace period the poster is owed after
	// the most recent challenge before the judge may rule; RulingBuffer is
	// how long the judge then has before timeout protection activates.
	Deadline        time.Time
	AcceptanceDelay time.Duration
	RulingBuffer    time.Duration

	ClaimText string

	Settled  bool
	Conceded bool

	// Cursor indexes the oldest unresolved challenge. Every challenge below
	// it is won, lost, or refunded; only the challenge at the cursor may
	// leave the pending state.
	Cursor int

	// LastChallengeAt is zero when the bond has never been challenged.
	LastChallengeAt time.Time

	Challenges []Challenge

	CreatedAt time.Time
	SettledAt *time.Time
}

// RulingWindowStart returns the earliest time the judge may rule on the
// current challenge: max(deadline, last challenge + acceptance delay). A
// challenge arriving just before the deadline still buys the poster the full
// acceptance delay to consider conceding.
func (b *Bond) RulingWindowStart() time.Time {
	start := b.Deadline
	if !b.LastChallengeAt.IsZero() {
		if t := b.LastChallengeAt.Add(b.AcceptanceDelay); t.After(start) {
			start = t
		}
	}
	return start
}

// RulingDeadline returns the last instant at which a ruling is accepted.
// Past it, anyone may claim a timeout instead.
func (b *Bond) RulingDeadline() time.Time {
	return b.RulingWindowStart().Add(b.RulingBuffer)
}

// Current returns the challenge at the cursor, or nil when the cursor has
// passed the end of the queue.
func (b *Bond) Current() *Challenge {
	if b.Cursor < 0 || b.Cursor >= len(b.Challenges) {
		return nil
	}
	return &b.Challenges[b.Cursor]
}

// HasPending reports whether any challenge anywhere in the queue is still
// pending. The cursor invariant makes scanning from the cursor sufficient,
// but the full scan keeps this correct even against a corrupted cursor.
func (b *Bond) HasPending() bool {
	for i := range b.Challenges {
		if b.Challenges[i].Status == ChallengePending {
			return true
		}
	}
	return false
}

// PendingFrom returns the indices of pending challenges at or after start.
func (b *Bond) PendingFrom(start int) []int {
	if start < 0 {
		start = 0
	}
	var idx []int
	for i := start; i < len(b.Challenges); i++ {
		if b.Challenges[i].Status == ChallengePending {
			idx = append(idx, i)
		}
	}
	return idx
}

// Clone returns a deep copy of the bond. Stores hand out clones so callers
// can never mutate persisted state outside a ledger operation.
func (b *Bond) Clone() *Bond {
	out := *b
	out.BondAmount = cloneBig(b.BondAmount)
	out.ChallengeAmount = cloneBig(b.ChallengeAmount)
	out.MaxJudgeFee = cloneBig(b.MaxJudgeFee)
	if b.SettledAt != nil {
		t := *b.SettledAt
		out.SettledAt = &t
	}
	out.Challenges = make([]Challenge, len(b.Challenges))
	copy(out.Challenges, b.Challenges)
	return &out
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
