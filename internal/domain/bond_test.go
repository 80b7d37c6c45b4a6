package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRulingWindowNoChallenges(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := &Bond{
		Deadline:        deadline,
		AcceptanceDelay: 72 * time.Hour,
		RulingBuffer:    48 * time.Hour,
	}

	// With no challenge recorded the window opens right at the deadline.
	assert.True(t, b.RulingWindowStart().Equal(deadline))
	assert.True(t, b.RulingDeadline().Equal(deadline.Add(48*time.Hour)))
}

func TestRulingWindowLateChallengeExtendsPastDeadline(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := &Bond{
		Deadline:        deadline,
		AcceptanceDelay: 72 * time.Hour,
		RulingBuffer:    24 * time.Hour,
		LastChallengeAt: deadline.Add(-time.Second),
	}

	wantStart := deadline.Add(-time.Second).Add(72 * time.Hour)
	require.True(t, wantStart.After(deadline))
	assert.True(t, b.RulingWindowStart().Equal(wantStart))
	assert.True(t, b.RulingDeadline().Equal(wantStart.Add(24*time.Hour)))
}

func TestRulingWindowEarlyChallengeDominatedByDeadline(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := &Bond{
		Deadline:        deadline,
		AcceptanceDelay: time.Hour,
		RulingBuffer:    time.Hour,
		LastChallengeAt: deadline.Add(-30 * 24 * time.Hour),
	}

	assert.True(t, b.RulingWindowStart().Equal(deadline))
}

func TestPendingHelpers(t *testing.T) {
	b := &Bond{
		Cursor: 1,
		Challenges: []Challenge{
			{Status: ChallengeLost},
			{Status: ChallengePending},
			{Status: ChallengePending},
		},
	}

	require.NotNil(t, b.Current())
	assert.Equal(t, ChallengePending, b.Current().Status)
	assert.True(t, b.HasPending())
	assert.Equal(t, []int{1, 2}, b.PendingFrom(b.Cursor))
	assert.Equal(t, []int{2}, b.PendingFrom(2))

	b.Cursor = 3
	assert.Nil(t, b.Current())
}

func TestCloneIsDeep(t *testing.T) {
	b := &Bond{
		Poster:          common.HexToAddress("0x01"),
		BondAmount:      big.NewInt(10_000),
		ChallengeAmount: big.NewInt(3_000),
		MaxJudgeFee:     big.NewInt(500),
		Challenges:      []Challenge{{Status: ChallengePending}},
	}

	c := b.Clone()
	c.BondAmount.SetInt64(1)
	c.Challenges[0].Status = ChallengeWon

	assert.Equal(t, int64(10_000), b.BondAmount.Int64())
	assert.Equal(t, ChallengePending, b.Challenges[0].Status)
}

func TestJudgeMinFeeDefaultsToZero(t *testing.T) {
	reg := JudgeRegistration{Judge: common.HexToAddress("0x02"), Registered: true}
	assert.Zero(t, reg.MinFee(common.HexToAddress("0x99")).Sign())

	asset := common.HexToAddress("0x99")
	reg.MinFees = map[common.Address]*big.Int{asset: big.NewInt(250)}
	assert.Equal(t, int64(250), reg.MinFee(asset).Int64())
}
