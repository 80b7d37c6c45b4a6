// Package evmbank implements domain.Bank against ERC-20 tokens on an
// EVM-compatible chain. Debits pull funds into the custody address with
// transferFrom (the poster or challenger must have approved the custody
// address as a spender); credits pay out of custody with transfer. Every
// call waits for its transaction to be mined so the ledger observes the
// same all-or-nothing semantics as the in-memory bank.
package evmbank

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

// erc20ABI covers the two methods the bank issues.
const erc20ABI = `[
  {"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"name":"transferFrom","type":"function","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// receiptPollInterval is how often Debit and Credit poll for a mined receipt.
const receiptPollInterval = 2 * time.Second

// Config holds the connection and signing parameters for the on-chain bank.
type Config struct {
	// RPCURL is the JSON-RPC endpoint of the chain node.
	RPCURL string

	// ChainID of the target chain; transactions are signed for this chain.
	ChainID int64

	// OperatorKeyHex is the hex-encoded private key of the custody operator.
	// The derived address holds custody funds and must be approved as a
	// spender by every poster and challenger.
	OperatorKeyHex string

	// ReceiptTimeout bounds how long a transfer waits to be mined. Zero
	// means wait until the caller's context expires.
	ReceiptTimeout time.Duration
}

// Bank moves ERC-20 value on behalf of the ledger. The asset address of each
// transfer is the token contract.
type Bank struct {
	client     *ethclient.Client
	abi        abi.ABI
	key        *ecdsa.PrivateKey
	custody    common.Address
	chainID    *big.Int
	rcptWindow time.Duration
}

// New dials the RPC endpoint and derives the custody address from the
// operator key.
func New(ctx context.Context, cfg Config) (*Bank, error) {
	if cfg.ChainID == 0 {
		return nil, fmt.Errorf("evmbank: chain id is required")
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("evmbank: parse erc20 abi: %w", err)
	}

	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(cfg.OperatorKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("evmbank: invalid operator key: %w", err)
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("evmbank: dial %s: %w", cfg.RPCURL, err)
	}

	return &Bank{
		client:     client,
		abi:        parsed,
		key:        key,
		custody:    ethcrypto.PubkeyToAddress(key.PublicKey),
		chainID:    big.NewInt(cfg.ChainID),
		rcptWindow: cfg.ReceiptTimeout,
	}, nil
}

// Custody returns the address that holds escrowed funds.
func (b *Bank) Custody() common.Address {
	return b.custody
}

// Close releases the underlying RPC connection.
func (b *Bank) Close() {
	b.client.Close()
}

// Debit pulls amount of the token at asset from the payer into custody via
// transferFrom. The payer must have an allowance for the custody address of
// at least amount, otherwise the transaction reverts and the error maps to
// domain.ErrInsufficientFunds.
func (b *Bank) Debit(ctx context.Context, asset, from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}

	input, err := b.abi.Pack("transferFrom", from, b.custody, amount)
	if err != nil {
		return fmt.Errorf("evmbank: pack transferFrom: %w", err)
	}

	if err := b.execute(ctx, asset, input); err != nil {
		return fmt.Errorf("evmbank: debit %s from %s: %w", amount, from.Hex(), err)
	}
	return nil
}

// Credit pays amount of the token at asset out of custody to the payee.
func (b *Bank) Credit(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}

	input, err := b.abi.Pack("transfer", to, amount)
	if err != nil {
		return fmt.Errorf("evmbank: pack transfer: %w", err)
	}

	if err := b.execute(ctx, asset, input); err != nil {
		return fmt.Errorf("evmbank: credit %s to %s: %w", amount, to.Hex(), err)
	}
	return nil
}

// execute builds, signs, sends, and waits for a contract call against the
// token contract. A revert during gas estimation surfaces as
// domain.ErrInsufficientFunds since allowance or balance shortfalls are the
// only revert paths of the two ERC-20 methods used here.
func (b *Bank) execute(ctx context.Context, token common.Address, input []byte) error {
	nonce, err := b.client.PendingNonceAt(ctx, b.custody)
	if err != nil {
		return fmt.Errorf("nonce: %w", err)
	}

	gasLimit, err := b.client.EstimateGas(ctx, ethereum.CallMsg{
		From: b.custody,
		To:   &token,
		Data: input,
	})
	if err != nil {
		return fmt.Errorf("estimate gas: %w (%w)", err, domain.ErrInsufficientFunds)
	}

	tipCap, err := b.client.SuggestGasTipCap(ctx)
	if err != nil {
		return fmt.Errorf("gas tip: %w", err)
	}
	head, err := b.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return fmt.Errorf("head: %w", err)
	}
	// feeCap = 2*baseFee + tip leaves headroom for base fee growth.
	feeCap := new(big.Int).Add(
		new(big.Int).Mul(head.BaseFee, big.NewInt(2)),
		tipCap,
	)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   b.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &token,
		Data:      input,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(b.chainID), b.key)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}

	if err := b.client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	return b.waitMined(ctx, signed.Hash())
}

// waitMined polls for the transaction receipt until it is mined, the context
// expires, or the configured receipt window elapses.
func (b *Bank) waitMined(ctx context.Context, hash common.Hash) error {
	if b.rcptWindow > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.rcptWindow)
		defer cancel()
	}

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		rcpt, err := b.client.TransactionReceipt(ctx, hash)
		if err == nil {
			if rcpt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("tx %s reverted (%w)", hash.Hex(), domain.ErrInsufficientFunds)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("tx %s not mined: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Compile-time interface check.
var _ domain.Bank = (*Bank)(nil)
