package ledger

import (
	"context"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	membank "github.com/alanyoungcy/truthbond/internal/bank/memory"
	"github.com/alanyoungcy/truthbond/internal/domain"
	memstore "github.com/alanyoungcy/truthbond/internal/store/memory"
)

var (
	asset  = common.HexToAddress("0xAAA0000000000000000000000000000000000001")
	poster = common.HexToAddress("0x1000000000000000000000000000000000000001")
	judge  = common.HexToAddress("0x2000000000000000000000000000000000000002")
	alice  = common.HexToAddress("0xA00000000000000000000000000000000000000A")
	bob    = common.HexToAddress("0xB00000000000000000000000000000000000000B")
	carol  = common.HexToAddress("0xC00000000000000000000000000000000000000C")
)

type fixture struct {
	ledger *Ledger
	bank   *membank.Bank
	bonds  *memstore.BondStore
	judges *memstore.JudgeStore
	events *memstore.EventStore
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		bank:   membank.New(),
		bonds:  memstore.NewBondStore(),
		judges: memstore.NewJudgeStore(),
		events: memstore.NewEventStore(),
		now:    time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.DiscardHandler)
	f.ledger = New(f.bonds, f.judges, f.bank, logger, f.events)
	f.ledger.now = func() time.Time { return f.now }

	require.NoError(t, f.judges.Put(context.Background(), domain.JudgeRegistration{
		Judge:      judge,
		Registered: true,
	}))

	// Everyone gets funds and a blanket allowance; individual tests override
	// when they need to exercise insufficiency.
	for _, who := range []common.Address{poster, alice, bob, carol} {
		f.bank.Mint(asset, who, big.NewInt(100_000))
		f.bank.Approve(asset, who, big.NewInt(100_000))
	}
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) params() CreateBondParams {
	return CreateBondParams{
		Asset:           asset,
		BondAmount:      big.NewInt(10_000),
		ChallengeAmount: big.NewInt(3_000),
		MaxJudgeFee:     big.NewInt(500),
		Judge:           judge,
		Deadline:        f.now.Add(7 * 24 * time.Hour),
		AcceptanceDelay: 3 * 24 * time.Hour,
		RulingBuffer:    2 * 24 * time.Hour,
		ClaimText:       "the bridge opened in 1937",
	}
}

// createBond creates a default bond and returns its id.
func (f *fixture) createBond(t *testing.T) int64 {
	t.Helper()
	id, err := f.ledger.CreateBond(context.Background(), poster, f.params())
	require.NoError(t, err)
	return id
}

// openWindow advances time past the deadline so the ruling window is open
// for a bond whose last challenge (if any) has already aged past the
// acceptance delay.
func (f *fixture) openWindow(t *testing.T, id int64) {
	t.Helper()
	b, err := f.bonds.Get(context.Background(), id)
	require.NoError(t, err)
	f.now = b.RulingWindowStart().Add(time.Minute)
}

// total sums every participant balance plus custody; conservation means this
// never changes across operations.
func (f *fixture) total() *big.Int {
	sum := new(big.Int)
	for _, who := range []common.Address{poster, judge, alice, bob, carol} {
		sum.Add(sum, f.bank.BalanceOf(asset, who))
	}
	sum.Add(sum, f.bank.Custody(asset))
	return sum
}

func TestCreateBondValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*fixture, *CreateBondParams)
		wantErr error
	}{
		{"zero bond amount", func(_ *fixture, p *CreateBondParams) { p.BondAmount = big.NewInt(0) }, domain.ErrInvalidAmount},
		{"nil challenge amount", func(_ *fixture, p *CreateBondParams) { p.ChallengeAmount = nil }, domain.ErrInvalidAmount},
		{"zero judge", func(_ *fixture, p *CreateBondParams) { p.Judge = common.Address{} }, domain.ErrZeroJudge},
		{"deadline in the past", func(f *fixture, p *CreateBondParams) { p.Deadline = f.now.Add(-time.Second) }, domain.ErrDeadlineNotFuture},
		{"deadline exactly now", func(f *fixture, p *CreateBondParams) { p.Deadline = f.now }, domain.ErrDeadlineNotFuture},
		{"zero ruling buffer", func(_ *fixture, p *CreateBondParams) { p.RulingBuffer = 0 }, domain.ErrInvalidBuffer},
		{"fee above challenge amount", func(_ *fixture, p *CreateBondParams) { p.MaxJudgeFee = big.NewInt(3_001) }, domain.ErrFeeExceedsMax},
		{"unregistered judge", func(_ *fixture, p *CreateBondParams) { p.Judge = carol }, domain.ErrJudgeNotRegistered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.params()
			tt.mutate(f, &p)

			_, err := f.ledger.CreateBond(ctx, poster, p)
			require.ErrorIs(t, err, tt.wantErr)

			// Failed creation moves no money.
			assert.Zero(t, f.bank.Custody(asset).Sign())
			assert.Equal(t, int64(100_000), f.bank.BalanceOf(asset, poster).Int64())
		})
	}
}

func TestCreateBondBelowJudgeMinimumFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.judges.Put(ctx, domain.JudgeRegistration{
		Judge:      judge,
		Registered: true,
		MinFees:    map[common.Address]*big.Int{asset: big.NewInt(750)},
	}))

	_, err := f.ledger.CreateBond(ctx, poster, f.params()) // max fee 500 < 750
	require.ErrorIs(t, err, domain.ErrFeeBelowMinimum)

	p := f.params()
	p.MaxJudgeFee = big.NewInt(750)
	_, err = f.ledger.CreateBond(ctx, poster, p)
	require.NoError(t, err)
}

func TestCreateBondAssignsMonotonicIDs(t *testing.T) {
	f := newFixture(t)

	first := f.createBond(t)
	second := f.createBond(t)
	assert.Equal(t, first+1, second)

	// Collateral for both bonds is in custody.
	assert.Equal(t, int64(20_000), f.bank.Custody(asset).Int64())
	assert.Equal(t, int64(80_000), f.bank.BalanceOf(asset, poster).Int64())
}

func TestChallengeAppendsFIFO(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createBond(t)

	require.NoError(t, f.ledger.Challenge(ctx, alice, id, "source is a forgery"))
	f.advance(time.Hour)
	require.NoError(t, f.ledger.Challenge(ctx, bob, id, "date is wrong"))
	// Same identity twice is two independent entries.
	require.NoError(t, f.ledger.Challenge(ctx, alice, id, "second thoughts"))

	b, err := f.bonds.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, b.Challenges, 3)
	assert.Equal(t, alice, b.Challenges[0].Challenger)
	assert.Equal(t, bob, b.Challenges[1].Challenger)
	assert.Equal(t, alice, b.Challenges[2].Challenger)
	assert.Equal(t, 0, b.Cursor)
	assert.True(t, b.LastChallengeAt.Equal(f.now))
	assert.Equal(t, int64(19_000), f.bank.Custody(asset).Int64())
}

func TestChallengePastDeadline(t *testing.T) {
	f := newFixture(t)
	id := f.createBond(t)

	f.advance(7*24*time.Hour + time.Second)
	err := f.ledger.Challenge(context.Background(), alice, id, "too late")
	require.ErrorIs(t, err, domain.ErrPastDeadline)
}

func TestChallengeInsufficientAllowance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createBond(t)

	f.bank.Approve(asset, alice, big.NewInt(0))
	err := f.ledger.Challenge(ctx, alice, id, "unbacked")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	b, err := f.bonds.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, b.Challenges)
}

func TestRuleForPosterScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createBond(t)

	require.NoError(t, f.ledger.Challenge(ctx, alice, id, "disputed"))
	f.openWindow(t, id)

	before := f.total()
	posterBefore := f.bank.BalanceOf(asset, poster)

	require.NoError(t, f.ledger.RuleForPoster(ctx, judge, id, big.NewInt(500)))

	// Poster gains 2500, judge gains 500, pool keeps exactly the collateral.
	gained := new(big.Int).Sub(f.bank.BalanceOf(asset, poster), posterBefore)
	assert.Equal(t, int64(2_500), gained.Int64())
	assert.Equal(t, int64(500), f.bank.BalanceOf(asset, judge).Int64())
	assert.Equal(t, int64(10_000), f.bank.Custody(asset).Int64())
	assert.Zero(t, before.Cmp(f.total()))

	b, err := f.bonds.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Cursor)
	assert.False(t, b.Settled)
	assert.Equal(t, domain.ChallengeLost, b.Challenges[0].Status)
}

func TestRuleForChallengerScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createBond(t)

	require.NoError(t, f.ledger.Challenge(ctx, alice, id, "disputed"))
	f.openWindow(t, id)

	aliceBefore := f.bank.BalanceOf(asset, alice)
	require.NoError(t, f.ledger.RuleForChallenger(ctx, judge, id, big.NewInt(0)))

	// Winner takes bond + stake with a zero fee: exactly 13000.
	gained := new(big.Int).Sub(f.bank.BalanceOf(asset, alice), aliceBefore)
	assert.Equal(t, int64(13_000), gained.Int64())
	assert.Zero(t, f.bank.Custody(asset).Sign())
	// Zero fee means no transfer to the judge at all.
	assert.Zero(t, f.bank.BalanceOf(asset, judge).Sign())

	b, err := f.bonds.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, b.Settled)
	assert.False(t, b.Conceded)
	assert.Equal(t, domain.ChallengeWon, b.Challenges[0].Status)
	require.NotNil(t, b.SettledAt)
}

func TestConcedeRefundsEveryone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createBond(t)

	for _, ch := range []common.Address{alice, bob, carol} {
		require.NoError(t, f.ledger.Challenge(ctx, ch, id, "disputed"))
	}
	require.Equal(t, int64(19_000), f.bank.Custody(asset).Int64())

	require.NoError(t, f.ledger.Concede(ctx, poster, id, "I was wrong"))

	assert.Zero(t, f.bank.Custody(asset).Sign())
	assert.Equal(t, int64(100_000), f.bank.BalanceOf(asset, poster).Int64())
	for _, ch := range []common.Address{alice, bob, carol} {
		assert.Equal(t, int64(100_000), f.bank.BalanceOf(asset, ch).Int64())
	}
	assert.Zero(t, f.bank.BalanceOf(asset, judge).Sign())

	b, err := f.bonds.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, b.Conceded)
	assert.True(t, b.Settled)
	for i := range b.Challenges {
		assert.Equal(t, domain.ChallengeRefunded, b.Challenges[i].Status)
	}
}

func TestConcedePreconditionOrdering(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong caller surfaces before missing challenges", func(t *testing.T) {
		f := newFixture(t)
		id := f.createBond(t)
		// No challenges at all, and alice is not the poster: the caller check
		// comes first.
		require.ErrorIs(t, f.ledger.Concede(ctx, alice, id, ""), domain.ErrNotPoster)
	})

	t.Run("no pending challenges", func(t *testing.T) {
		f := newFixture(t)
		id := f.createBond(t)
		require.ErrorIs(t, f.ledger.Concede(ctx, poster, id, ""), domain.ErrNoPendingChallenges)
	})

	t.Run("unavailable after first ruling", func(t *testing.T) {
		f := newFixture(t)
		id := f.createBond(t)
		require.NoError(t, f.ledger.Challenge(ctx, alice, id, "a"))
		require.NoError(t, f.ledger.Challenge(ctx, bob, id, "b"))
		f.openWindow(t, id)
		require.NoError(t, f.ledger.RuleForPoster(ctx, judge, id, big.NewInt(0)))

		// One pending challenge remains but the cursor has moved.
		require.ErrorIs(t, f.ledger.Concede(ctx, poster, id, ""), domain.ErrRulingStarted)
	})

	t.Run("settled surfaces before everything", func(t *testing.T) {
		f := newFixture(t)
		id := f.createBond(t)
		require.NoError(t, f.ledger.Challenge(ctx, alice, id, "a"))
		require.NoError(t, f.ledger.Concede(ctx, poster, id, ""))
		// Conceded bonds are settled; the settled check fires first.
		require.ErrorIs(t, f.ledger.Concede(ctx, poster, id, ""), domain.ErrSettled)
	})
}

func TestWithdrawBond(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createBond(t)

	require.ErrorIs(t, f.ledger.WithdrawBond(ctx, alice, id), domain.ErrNotPoster)

	require.NoError(t, f.ledger.Challenge(ctx, alice, id, "disputed"))
	require.ErrorIs(t, f.ledger.WithdrawBond(ctx, poster, id), domain.ErrPendingChallenges)

	f.openWindow(t, id)
	require.NoError(t, f.ledger.RuleForPoster(ctx, judge, id, big.NewInt(500)))

	// Queue fully resolved: withdrawal is allowed and settles the bond.
	require.NoError(t, f.ledger.WithdrawBond(ctx, poster, id))
	assert.Zero(t, f.bank.Custody(asset).Sign())

	b, err := f.bonds.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, b.Settled)
	assert.False(t, b.Conceded)
}

func TestRulingWindowTiming(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createBond(t)

	// Challenge lands one second before the deadline; acceptance delay is 3
	// days, so the window opens well past the deadline.
	f.advance(7*24*time.Hour - time.Second)
	require.NoError(t, f.ledger.Challenge(ctx, alice, id, "last minute"))

	// One second past the deadline is still before the window.
	f.advance(2 * time.Second)
	require.ErrorIs(t, f.ledger.RuleForPoster(ctx, judge, id, big.NewInt(0)), domain.ErrBeforeWindow)

	b, err := f.bonds.Get(ctx, id)
	require.NoError(t, err)
	wantStart := b.LastChallengeAt.Add(3 * 24 * time.Hour)
	require.True(t, wantStart.After(b.Deadline))
	require.True(t, b.RulingWindowStart().Equal(wantStart))

	// Inside the window it works.
	f.now = wantStart
	require.NoError(t, f.ledger.RuleForPoster(ctx, judge, id, big.NewInt(0)))

	// A fresh bond whose window has closed rejects rulings with the
	// past-deadline error instead.
	id2 := f.createBond(t)
	require.NoError(t, f.ledger.Challenge(ctx, alice, id2, "x"))
	f.now = f.now.Add(365 * 24 * time.Hour)
	require.ErrorIs(t, f.ledger.RuleForChallenger(ctx, judge, id2, big.NewInt(0)), domain.ErrPastRulingDeadline)
}

func TestClaimTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createBond(t)

	require.NoError(t, f.ledger.Challenge(ctx, alice, id, "a"))
	require.NoError(t, f.ledger.Challenge(ctx, bob, id, "b"))

	// Too early.
	require.ErrorIs(t, f.ledger.ClaimTimeout(ctx, carol, id), domain.ErrTimeoutNotReached)

	b, err := f.bonds.Get(ctx, id)
	require.NoError(t, err)
	f.now = b.RulingDeadline() // exactly at the deadline is still too early
	require.ErrorIs(t, f.ledger.ClaimTimeout(ctx, carol, id), domain.ErrTimeoutNotReached)

	f.advance(time.Second)
	require.NoError(t, f.ledger.ClaimTimeout(ctx, carol, id))

	// Poster and challengers whole again, judge penalized by inaction.
	assert.Zero(t, f.bank.Custody(asset).Sign())
	assert.Equal(t, int64(100_000), f.bank.BalanceOf(asset, poster).Int64())
	assert.Equal(t, int64(100_000), f.bank.BalanceOf(asset, alice).Int64())
	assert.Equal(t, int64(100_000), f.bank.BalanceOf(asset, bob).Int64())
	assert.Zero(t, f.bank.BalanceOf(asset, judge).Sign())

	b, err = f.bonds.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, b.Settled)
	assert.False(t, b.Conceded)
}

func TestClaimTimeoutRequiresPendingChallenge(t *testing.T) {
	f := newFixture(t)
	id := f.createBond(t)

	f.now = f.now.Add(30 * 24 * time.Hour)
	require.ErrorIs(t, f.ledger.ClaimTimeout(context.Background(), carol, id), domain.ErrNoPendingChallenges)
}

func TestRejectBond(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("works with zero challenges", func(t *testing.T) {
		id := f.createBond(t)
		require.ErrorIs(t, f.ledger.RejectBond(ctx, poster, id), domain.ErrNotJudge)
		require.NoError(t, f.ledger.RejectBond(ctx, judge, id))

		b, err := f.bonds.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, b.Settled)
	})

	t.Run("refunds pending challenges", func(t *testing.T) {
		id := f.createBond(t)
		require.NoError(t, f.ledger.Challenge(ctx, alice, id, "a"))

		before := f.total()
		require.NoError(t, f.ledger.RejectBond(ctx, judge, id))
		assert.Zero(t, before.Cmp(f.total()))
		assert.Equal(t, int64(100_000), f.bank.BalanceOf(asset, alice).Int64())
		assert.Zero(t, f.bank.BalanceOf(asset, judge).Sign())
	})
}

func TestDeregisteredJudgeStillActsOnExistingBonds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createBond(t)
	require.NoError(t, f.ledger.Challenge(ctx, alice, id, "disputed"))

	// Deregister after creation; the bond keeps its judge.
	require.NoError(t, f.judges.Put(ctx, domain.JudgeRegistration{Judge: judge, Registered: false}))

	f.openWindow(t, id)
	require.NoError(t, f.ledger.RuleForPoster(ctx, judge, id, big.NewInt(500)))

	// But no new bond may name them.
	_, err := f.ledger.CreateBond(ctx, poster, f.params())
	require.ErrorIs(t, err, domain.ErrJudgeNotRegistered)
}

func TestTwoChallengerSequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createBond(t)

	require.NoError(t, f.ledger.Challenge(ctx, alice, id, "a"))
	require.NoError(t, f.ledger.Challenge(ctx, bob, id, "b"))
	f.openWindow(t, id)

	require.NoError(t, f.ledger.RuleForPoster(ctx, judge, id, big.NewInt(500)))
	b, err := f.bonds.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Cursor)
	assert.False(t, b.Settled)

	require.NoError(t, f.ledger.RuleForChallenger(ctx, judge, id, big.NewInt(500)))
	b, err = f.bonds.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, b.Settled)
	assert.Zero(t, f.bank.Custody(asset).Sign())

	// No third ruling, or anything else, after settlement.
	require.ErrorIs(t, f.ledger.RuleForPoster(ctx, judge, id, big.NewInt(0)), domain.ErrSettled)
	require.ErrorIs(t, f.ledger.Challenge(ctx, carol, id, "late"), domain.ErrSettled)
	require.ErrorIs(t, f.ledger.Concede(ctx, poster, id, ""), domain.ErrSettled)
	require.ErrorIs(t, f.ledger.WithdrawBond(ctx, poster, id), domain.ErrSettled)
	require.ErrorIs(t, f.ledger.ClaimTimeout(ctx, carol, id), domain.ErrSettled)
	require.ErrorIs(t, f.ledger.RejectBond(ctx, judge, id), domain.ErrSettled)
}

func TestWinningRulingRefundsLaterChallengers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createBond(t)

	require.NoError(t, f.ledger.Challenge(ctx, alice, id, "a"))
	require.NoError(t, f.ledger.Challenge(ctx, bob, id, "b"))
	require.NoError(t, f.ledger.Challenge(ctx, carol, id, "c"))
	f.openWindow(t, id)

	require.NoError(t, f.ledger.RuleForChallenger(ctx, judge, id, big.NewInt(500)))

	b, err := f.bonds.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ChallengeWon, b.Challenges[0].Status)
	assert.Equal(t, domain.ChallengeRefunded, b.Challenges[1].Status)
	assert.Equal(t, domain.ChallengeRefunded, b.Challenges[2].Status)

	// Alice nets bond + stake - fee; bob and carol are made whole.
	assert.Equal(t, int64(100_000+10_000-500), f.bank.BalanceOf(asset, alice).Int64())
	assert.Equal(t, int64(100_000), f.bank.BalanceOf(asset, bob).Int64())
	assert.Equal(t, int64(100_000), f.bank.BalanceOf(asset, carol).Int64())
	assert.Equal(t, int64(500), f.bank.BalanceOf(asset, judge).Int64())
	assert.Zero(t, f.bank.Custody(asset).Sign())
}

func TestRulingFeeCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createBond(t)
	require.NoError(t, f.ledger.Challenge(ctx, alice, id, "a"))
	f.openWindow(t, id)

	require.ErrorIs(t, f.ledger.RuleForPoster(ctx, judge, id, big.NewInt(501)), domain.ErrFeeExceedsMax)
	require.ErrorIs(t, f.ledger.RuleForChallenger(ctx, judge, id, big.NewInt(-1)), domain.ErrFeeExceedsMax)
	require.ErrorIs(t, f.ledger.RuleForPoster(ctx, alice, id, big.NewInt(0)), domain.ErrNotJudge)
}

func TestConstantRatios(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createBond(t)

	require.NoError(t, f.ledger.Challenge(ctx, alice, id, "a"))
	require.NoError(t, f.ledger.Challenge(ctx, bob, id, "b"))
	f.openWindow(t, id)
	require.NoError(t, f.ledger.RuleForPoster(ctx, judge, id, big.NewInt(250)))
	require.NoError(t, f.ledger.RuleForPoster(ctx, judge, id, big.NewInt(500)))

	b, err := f.bonds.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), b.BondAmount.Int64())
	assert.Equal(t, int64(3_000), b.ChallengeAmount.Int64())
	assert.Equal(t, int64(500), b.MaxJudgeFee.Int64())
}

func TestConservationAcrossLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := f.total()

	id := f.createBond(t)
	assert.Zero(t, start.Cmp(f.total()))

	require.NoError(t, f.ledger.Challenge(ctx, alice, id, "a"))
	require.NoError(t, f.ledger.Challenge(ctx, bob, id, "b"))
	require.NoError(t, f.ledger.Challenge(ctx, carol, id, "c"))
	assert.Zero(t, start.Cmp(f.total()))

	f.openWindow(t, id)
	require.NoError(t, f.ledger.RuleForPoster(ctx, judge, id, big.NewInt(500)))
	assert.Zero(t, start.Cmp(f.total()))

	require.NoError(t, f.ledger.RuleForChallenger(ctx, judge, id, big.NewInt(250)))
	assert.Zero(t, start.Cmp(f.total()))
	assert.Zero(t, f.bank.Custody(asset).Sign())
}

func TestEventsEmittedPerOperation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createBond(t)

	require.NoError(t, f.ledger.Challenge(ctx, alice, id, "a"))
	require.NoError(t, f.ledger.Challenge(ctx, bob, id, "b"))
	require.NoError(t, f.ledger.Concede(ctx, poster, id, "mea culpa"))

	events, err := f.events.ListByBond(ctx, id, domain.ListOpts{})
	require.NoError(t, err)

	var types []domain.EventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []domain.EventType{
		domain.EventBondCreated,
		domain.EventBondChallenged,
		domain.EventBondChallenged,
		domain.EventBondConceded,
		domain.EventChallengeRefunded,
		domain.EventChallengeRefunded,
	}, types)
}

func TestUnknownBond(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.ledger.Challenge(ctx, alice, 404, "x"), domain.ErrNotFound)
	require.ErrorIs(t, f.ledger.Concede(ctx, poster, 404, ""), domain.ErrNotFound)
	require.ErrorIs(t, f.ledger.RejectBond(ctx, judge, 404), domain.ErrNotFound)
	_, err := f.ledger.GetBond(ctx, 404)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
