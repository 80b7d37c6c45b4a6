package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Bank is the external value-transfer collaborator. Each call either moves
// the full amount atomically or fails with no effect; a bank failure aborts
// the ledger operation that issued it before any state is persisted.
//
// The ledger never issues zero-value transfers, so implementations may treat
// a zero amount as an error.
type Bank interface {
	// Debit moves amount of asset from the payer's external balance into the
	// mechanism's custody. It fails when the payer has an insufficient
	// balance or has not authorized the mechanism to move funds.
	Debit(ctx context.Context, asset, from common.Address, amount *big.Int) error

	// Credit pays amount of asset out of custody to the payee.
	Credit(ctx context.Context, asset, to common.Address, amount *big.Int) error
}
