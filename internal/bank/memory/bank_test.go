package membank

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

var (
	testAsset = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testOwner = common.HexToAddress("0x0000000000000000000000000000000000000001")
	testPayee = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

func TestDebitConsumesBalanceAndAllowance(t *testing.T) {
	ctx := context.Background()
	b := New()
	b.Mint(testAsset, testOwner, big.NewInt(1000))
	b.Approve(testAsset, testOwner, big.NewInt(600))

	require.NoError(t, b.Debit(ctx, testAsset, testOwner, big.NewInt(400)))

	assert.Equal(t, int64(600), b.BalanceOf(testAsset, testOwner).Int64())
	assert.Equal(t, int64(400), b.Custody(testAsset).Int64())

	// Remaining allowance is 200, so a 300 debit fails even though the
	// balance covers it.
	err := b.Debit(ctx, testAsset, testOwner, big.NewInt(300))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, int64(600), b.BalanceOf(testAsset, testOwner).Int64())
	assert.Equal(t, int64(400), b.Custody(testAsset).Int64())
}

func TestDebitInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	b := New()
	b.Mint(testAsset, testOwner, big.NewInt(100))
	b.Approve(testAsset, testOwner, big.NewInt(1000))

	err := b.Debit(ctx, testAsset, testOwner, big.NewInt(200))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, int64(100), b.BalanceOf(testAsset, testOwner).Int64())
	assert.Equal(t, int64(0), b.Custody(testAsset).Int64())
}

func TestCreditPaysFromCustody(t *testing.T) {
	ctx := context.Background()
	b := New()
	b.Mint(testAsset, testOwner, big.NewInt(500))
	b.Approve(testAsset, testOwner, big.NewInt(500))
	require.NoError(t, b.Debit(ctx, testAsset, testOwner, big.NewInt(500)))

	require.NoError(t, b.Credit(ctx, testAsset, testPayee, big.NewInt(300)))
	assert.Equal(t, int64(300), b.BalanceOf(testAsset, testPayee).Int64())
	assert.Equal(t, int64(200), b.Custody(testAsset).Int64())

	// Custody only holds 200 now.
	require.Error(t, b.Credit(ctx, testAsset, testPayee, big.NewInt(201)))
}

func TestZeroAndNilAmountsRejected(t *testing.T) {
	ctx := context.Background()
	b := New()

	assert.ErrorIs(t, b.Debit(ctx, testAsset, testOwner, big.NewInt(0)), domain.ErrInvalidAmount)
	assert.ErrorIs(t, b.Debit(ctx, testAsset, testOwner, nil), domain.ErrInvalidAmount)
	assert.ErrorIs(t, b.Credit(ctx, testAsset, testPayee, big.NewInt(-1)), domain.ErrInvalidAmount)
}

func TestAssetsAreIsolated(t *testing.T) {
	ctx := context.Background()
	other := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	b := New()
	b.Mint(testAsset, testOwner, big.NewInt(100))
	b.Approve(testAsset, testOwner, big.NewInt(100))
	require.NoError(t, b.Debit(ctx, testAsset, testOwner, big.NewInt(100)))

	assert.Equal(t, int64(0), b.Custody(other).Int64())
	err := b.Debit(ctx, other, testOwner, big.NewInt(1))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
}
