package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ChallengeStatus is the state of a single challenge. Pending is the only
// non-terminal state; transitions are one-way.
type ChallengeStatus string

const (
	ChallengePending  ChallengeStatus = "pending"
	ChallengeWon      ChallengeStatus = "won"
	ChallengeLost     ChallengeStatus = "lost"
	ChallengeRefunded ChallengeStatus = "refunded"
)

// Challenge is one entry in a bond's FIFO challenge queue. Challenges are
// resolved strictly in arrival order; the same challenger may appear more
// than once with independent entries.
type Challenge struct {
	Challenger common.Address
	Status     ChallengeStatus
	Reason     string
	CreatedAt  time.Time
}
