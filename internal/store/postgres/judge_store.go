package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

// JudgeStore implements domain.JudgeStore using PostgreSQL. Per-asset minimum
// fees are stored as a JSONB object of address → decimal string.
type JudgeStore struct {
	pool *pgxpool.Pool
}

// NewJudgeStore creates a new JudgeStore.
func NewJudgeStore(pool *pgxpool.Pool) *JudgeStore {
	return &JudgeStore{pool: pool}
}

// Get returns the registration for judge, or domain.ErrNotFound.
func (s *JudgeStore) Get(ctx context.Context, judge common.Address) (domain.JudgeRegistration, error) {
	const query = `SELECT registered, min_fees FROM judges WHERE judge = $1`

	var (
		reg  = domain.JudgeRegistration{Judge: judge}
		fees []byte
	)
	err := s.pool.QueryRow(ctx, query, judge.Hex()).Scan(&reg.Registered, &fees)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.JudgeRegistration{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.JudgeRegistration{}, fmt.Errorf("postgres: get judge %s: %w", judge.Hex(), err)
	}

	reg.MinFees, err = decodeFees(fees)
	if err != nil {
		return domain.JudgeRegistration{}, fmt.Errorf("postgres: get judge %s: %w", judge.Hex(), err)
	}
	return reg, nil
}

// Put upserts a registration.
func (s *JudgeStore) Put(ctx context.Context, reg domain.JudgeRegistration) error {
	fees, err := encodeFees(reg.MinFees)
	if err != nil {
		return fmt.Errorf("postgres: put judge %s: %w", reg.Judge.Hex(), err)
	}

	const query = `
		INSERT INTO judges (judge, registered, min_fees, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (judge) DO UPDATE SET
			registered = EXCLUDED.registered,
			min_fees = EXCLUDED.min_fees,
			updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query, reg.Judge.Hex(), reg.Registered, fees); err != nil {
		return fmt.Errorf("postgres: put judge %s: %w", reg.Judge.Hex(), err)
	}
	return nil
}

func encodeFees(fees map[common.Address]*big.Int) ([]byte, error) {
	out := make(map[string]string, len(fees))
	for asset, fee := range fees {
		out[asset.Hex()] = fee.String()
	}
	return json.Marshal(out)
}

func decodeFees(data []byte) (map[common.Address]*big.Int, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[common.Address]*big.Int, len(raw))
	for asset, fee := range raw {
		v, ok := new(big.Int).SetString(fee, 10)
		if !ok {
			return nil, fmt.Errorf("invalid fee %q for asset %s", fee, asset)
		}
		out[common.HexToAddress(asset)] = v
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.JudgeStore = (*JudgeStore)(nil)
