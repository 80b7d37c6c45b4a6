// Package membank implements the value-transfer collaborator in memory:
// per-asset external balances, spending allowances granted to the mechanism,
// and a single custody pool. It backs the tests and the "memory" operating
// mode; production deployments use the evm bank.
package membank

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

type accountKey struct {
	asset common.Address
	owner common.Address
}

// Bank holds balances and allowances for any number of assets. All methods
// are safe for concurrent use; each Debit/Credit applies fully or not at all.
type Bank struct {
	mu         sync.Mutex
	balances   map[accountKey]*big.Int
	allowances map[accountKey]*big.Int
	custody    map[common.Address]*big.Int // per asset
}

// New creates an empty Bank.
func New() *Bank {
	return &Bank{
		balances:   make(map[accountKey]*big.Int),
		allowances: make(map[accountKey]*big.Int),
		custody:    make(map[common.Address]*big.Int),
	}
}

// Mint adds amount of asset to the owner's external balance.
func (b *Bank) Mint(asset, owner common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(b.balances, accountKey{asset, owner}, amount)
}

// Approve authorizes the mechanism to move up to amount of the owner's asset
// balance. The allowance is consumed by Debit, mirroring ERC-20 semantics.
func (b *Bank) Approve(asset, owner common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowances[accountKey{asset, owner}] = new(big.Int).Set(amount)
}

// Debit moves amount of asset from the payer's balance into custody,
// consuming allowance. It fails with ErrInsufficientFunds when either the
// balance or the remaining allowance is too small, leaving all state intact.
func (b *Bank) Debit(_ context.Context, asset, from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("membank: debit: %w", domain.ErrInvalidAmount)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	key := accountKey{asset, from}
	bal := b.get(b.balances, key)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("membank: debit %s from %s: %w", amount, from.Hex(), domain.ErrInsufficientFunds)
	}
	allow := b.get(b.allowances, key)
	if allow.Cmp(amount) < 0 {
		return fmt.Errorf("membank: debit %s from %s: allowance: %w", amount, from.Hex(), domain.ErrInsufficientFunds)
	}

	bal.Sub(bal, amount)
	allow.Sub(allow, amount)
	b.addCustody(asset, amount)
	return nil
}

// Credit pays amount of asset out of custody to the payee. Paying out more
// than custody holds indicates a ledger bug and fails loudly.
func (b *Bank) Credit(_ context.Context, asset, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("membank: credit: %w", domain.ErrInvalidAmount)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	pool := b.custodyOf(asset)
	if pool.Cmp(amount) < 0 {
		return fmt.Errorf("membank: credit %s to %s exceeds custody %s", amount, to.Hex(), pool)
	}
	pool.Sub(pool, amount)
	b.add(b.balances, accountKey{asset, to}, amount)
	return nil
}

// BalanceOf returns the owner's external balance for asset.
func (b *Bank) BalanceOf(asset, owner common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.get(b.balances, accountKey{asset, owner}))
}

// Custody returns the size of the custody pool for asset.
func (b *Bank) Custody(asset common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.custodyOf(asset))
}

func (b *Bank) get(m map[accountKey]*big.Int, key accountKey) *big.Int {
	v, ok := m[key]
	if !ok {
		v = new(big.Int)
		m[key] = v
	}
	return v
}

func (b *Bank) add(m map[accountKey]*big.Int, key accountKey, amount *big.Int) {
	b.get(m, key).Add(b.get(m, key), amount)
}

func (b *Bank) custodyOf(asset common.Address) *big.Int {
	v, ok := b.custody[asset]
	if !ok {
		v = new(big.Int)
		b.custody[asset] = v
	}
	return v
}

func (b *Bank) addCustody(asset common.Address, amount *big.Int) {
	b.custodyOf(asset).Add(b.custodyOf(asset), amount)
}

// Compile-time interface check.
var _ domain.Bank = (*Bank)(nil)
