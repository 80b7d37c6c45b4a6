package registry

import (
	"context"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truthbond/internal/domain"
	memstore "github.com/alanyoungcy/truthbond/internal/store/memory"
)

var (
	regJudge = common.HexToAddress("0x0000000000000000000000000000000000000033")
	regAsset = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func newTestRegistry(sinks ...domain.EventSink) *Registry {
	logger := slog.New(slog.DiscardHandler)
	return New(memstore.NewJudgeStore(), logger, sinks...)
}

func TestRegisterAndDeregister(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	ok, err := r.IsRegistered(ctx, regJudge)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Register(ctx, regJudge))
	ok, err = r.IsRegistered(ctx, regJudge)
	require.NoError(t, err)
	assert.True(t, ok)

	// Registering again is a silent no-op.
	require.NoError(t, r.Register(ctx, regJudge))

	require.NoError(t, r.Deregister(ctx, regJudge))
	ok, err = r.IsRegistered(ctx, regJudge)
	require.NoError(t, err)
	assert.False(t, ok)

	// Deregistering when not registered is also a no-op.
	require.NoError(t, r.Deregister(ctx, regJudge))
}

func TestMinFeeDefaultsToZero(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	fee, err := r.MinFee(ctx, regJudge, regAsset)
	require.NoError(t, err)
	assert.Equal(t, int64(0), fee.Int64())
}

func TestSetMinFeePerAsset(t *testing.T) {
	ctx := context.Background()
	other := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	r := newTestRegistry()

	require.NoError(t, r.SetMinFee(ctx, regJudge, regAsset, big.NewInt(250)))

	fee, err := r.MinFee(ctx, regJudge, regAsset)
	require.NoError(t, err)
	assert.Equal(t, int64(250), fee.Int64())

	// Other assets remain at the zero default.
	fee, err = r.MinFee(ctx, regJudge, other)
	require.NoError(t, err)
	assert.Equal(t, int64(0), fee.Int64())
}

func TestSetMinFeeWithoutRegistration(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	// Fees may be configured before registering.
	require.NoError(t, r.SetMinFee(ctx, regJudge, regAsset, big.NewInt(100)))

	ok, err := r.IsRegistered(ctx, regJudge)
	require.NoError(t, err)
	assert.False(t, ok)

	// Registration later keeps the configured fee.
	require.NoError(t, r.Register(ctx, regJudge))
	fee, err := r.MinFee(ctx, regJudge, regAsset)
	require.NoError(t, err)
	assert.Equal(t, int64(100), fee.Int64())
}

func TestSetMinFeeRejectsNegative(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry()

	assert.ErrorIs(t, r.SetMinFee(ctx, regJudge, regAsset, big.NewInt(-1)), domain.ErrInvalidAmount)
	assert.ErrorIs(t, r.SetMinFee(ctx, regJudge, regAsset, nil), domain.ErrInvalidAmount)
}

type captureSink struct {
	events []domain.Event
}

func (c *captureSink) Emit(_ context.Context, ev domain.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func TestRegistryEmitsEvents(t *testing.T) {
	ctx := context.Background()
	sink := &captureSink{}
	r := newTestRegistry(sink)

	require.NoError(t, r.Register(ctx, regJudge))
	require.NoError(t, r.SetMinFee(ctx, regJudge, regAsset, big.NewInt(10)))
	require.NoError(t, r.Deregister(ctx, regJudge))

	require.Len(t, sink.events, 3)
	assert.Equal(t, domain.EventJudgeRegistered, sink.events[0].Type)
	assert.Equal(t, domain.EventJudgeFeeUpdated, sink.events[1].Type)
	assert.Equal(t, domain.EventJudgeDeregistered, sink.events[2].Type)
	assert.Equal(t, regJudge, sink.events[0].Actor)
}
