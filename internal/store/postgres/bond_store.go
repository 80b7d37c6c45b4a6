package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

// BondStore implements domain.BondStore using PostgreSQL. Bond ids come from
// the bonds BIGSERIAL, which keeps them monotonic across restarts; Save
// writes the bond row and the challenge queue in one transaction.
type BondStore struct {
	pool *pgxpool.Pool
}

// NewBondStore creates a new BondStore.
func NewBondStore(pool *pgxpool.Pool) *BondStore {
	return &BondStore{pool: pool}
}

// Create inserts a new bond and returns its assigned id. New bonds have an
// empty challenge queue by construction.
func (s *BondStore) Create(ctx context.Context, bond *domain.Bond) (int64, error) {
	const query = `
		INSERT INTO bonds (poster, judge, asset, bond_amount, challenge_amount, max_judge_fee,
			deadline, acceptance_delay_ns, ruling_buffer_ns, claim_text,
			settled, conceded, cursor_idx, last_challenge_at, created_at, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id`

	err := s.pool.QueryRow(ctx, query,
		bond.Poster.Hex(), bond.Judge.Hex(), bond.Asset.Hex(),
		bond.BondAmount.String(), bond.ChallengeAmount.String(), bond.MaxJudgeFee.String(),
		bond.Deadline, bond.AcceptanceDelay.Nanoseconds(), bond.RulingBuffer.Nanoseconds(), bond.ClaimText,
		bond.Settled, bond.Conceded, bond.Cursor, nullTime(bond.LastChallengeAt), bond.CreatedAt, bond.SettledAt,
	).Scan(&bond.ID)
	if err != nil {
		return 0, fmt.Errorf("postgres: create bond: %w", err)
	}
	return bond.ID, nil
}

// Get returns the full aggregate for one bond.
func (s *BondStore) Get(ctx context.Context, id int64) (*domain.Bond, error) {
	const query = `
		SELECT id, poster, judge, asset, bond_amount::text, challenge_amount::text, max_judge_fee::text,
			deadline, acceptance_delay_ns, ruling_buffer_ns, claim_text,
			settled, conceded, cursor_idx, last_challenge_at, created_at, settled_at
		FROM bonds WHERE id = $1`

	bond, err := scanBond(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get bond %d: %w", id, err)
	}

	if err := s.loadChallenges(ctx, bond); err != nil {
		return nil, err
	}
	return bond, nil
}

// Save persists the bond row and upserts the challenge queue atomically.
// Challenges are append-only with mutable status, so an upsert keyed on
// (bond_id, idx) covers both the new tail entries and status flips.
func (s *BondStore) Save(ctx context.Context, bond *domain.Bond) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin save bond %d: %w", bond.ID, err)
	}
	defer tx.Rollback(ctx)

	const update = `
		UPDATE bonds SET
			settled = $2, conceded = $3, cursor_idx = $4,
			last_challenge_at = $5, settled_at = $6
		WHERE id = $1`
	tag, err := tx.Exec(ctx, update,
		bond.ID, bond.Settled, bond.Conceded, bond.Cursor,
		nullTime(bond.LastChallengeAt), bond.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save bond %d: %w", bond.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	const upsert = `
		INSERT INTO challenges (bond_id, idx, challenger, status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (bond_id, idx) DO UPDATE SET status = EXCLUDED.status`
	for i, ch := range bond.Challenges {
		if _, err := tx.Exec(ctx, upsert,
			bond.ID, i, ch.Challenger.Hex(), string(ch.Status), ch.Reason, ch.CreatedAt,
		); err != nil {
			return fmt.Errorf("postgres: save challenge %d/%d: %w", bond.ID, i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit save bond %d: %w", bond.ID, err)
	}
	return nil
}

// List returns bonds in id order.
func (s *BondStore) List(ctx context.Context, opts domain.ListOpts) ([]*domain.Bond, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, poster, judge, asset, bond_amount::text, challenge_amount::text, max_judge_fee::text,
			deadline, acceptance_delay_ns, ruling_buffer_ns, claim_text,
			settled, conceded, cursor_idx, last_challenge_at, created_at, settled_at
		FROM bonds ORDER BY id LIMIT $1 OFFSET $2`
	return s.queryBonds(ctx, query, limit, opts.Offset)
}

// ListUnsettled returns every open bond in id order.
func (s *BondStore) ListUnsettled(ctx context.Context) ([]*domain.Bond, error) {
	const query = `
		SELECT id, poster, judge, asset, bond_amount::text, challenge_amount::text, max_judge_fee::text,
			deadline, acceptance_delay_ns, ruling_buffer_ns, claim_text,
			settled, conceded, cursor_idx, last_challenge_at, created_at, settled_at
		FROM bonds WHERE NOT settled ORDER BY id`
	return s.queryBonds(ctx, query)
}

func (s *BondStore) queryBonds(ctx context.Context, query string, args ...any) ([]*domain.Bond, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bonds: %w", err)
	}
	defer rows.Close()

	var list []*domain.Bond
	for rows.Next() {
		bond, err := scanBond(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bond: %w", err)
		}
		list = append(list, bond)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, bond := range list {
		if err := s.loadChallenges(ctx, bond); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (s *BondStore) loadChallenges(ctx context.Context, bond *domain.Bond) error {
	const query = `
		SELECT challenger, status, reason, created_at
		FROM challenges WHERE bond_id = $1 ORDER BY idx`
	rows, err := s.pool.Query(ctx, query, bond.ID)
	if err != nil {
		return fmt.Errorf("postgres: load challenges %d: %w", bond.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			challenger string
			status     string
			ch         domain.Challenge
		)
		if err := rows.Scan(&challenger, &status, &ch.Reason, &ch.CreatedAt); err != nil {
			return fmt.Errorf("postgres: scan challenge %d: %w", bond.ID, err)
		}
		ch.Challenger = common.HexToAddress(challenger)
		ch.Status = domain.ChallengeStatus(status)
		bond.Challenges = append(bond.Challenges, ch)
	}
	return rows.Err()
}

// scanBond reads one bonds row from either a pgx.Row or pgx.Rows.
func scanBond(row pgx.Row) (*domain.Bond, error) {
	var (
		bond                           domain.Bond
		poster, judgeAddr, assetAddr   string
		bondAmt, challengeAmt, maxFee  string
		acceptanceDelay, rulingBuffer  int64
		lastChallengeAt                *time.Time
	)
	err := row.Scan(
		&bond.ID, &poster, &judgeAddr, &assetAddr, &bondAmt, &challengeAmt, &maxFee,
		&bond.Deadline, &acceptanceDelay, &rulingBuffer, &bond.ClaimText,
		&bond.Settled, &bond.Conceded, &bond.Cursor, &lastChallengeAt, &bond.CreatedAt, &bond.SettledAt,
	)
	if err != nil {
		return nil, err
	}

	bond.Poster = common.HexToAddress(poster)
	bond.Judge = common.HexToAddress(judgeAddr)
	bond.Asset = common.HexToAddress(assetAddr)
	bond.AcceptanceDelay = time.Duration(acceptanceDelay)
	bond.RulingBuffer = time.Duration(rulingBuffer)
	if lastChallengeAt != nil {
		bond.LastChallengeAt = *lastChallengeAt
	}

	if bond.BondAmount, err = parseAmount(bondAmt); err != nil {
		return nil, err
	}
	if bond.ChallengeAmount, err = parseAmount(challengeAmt); err != nil {
		return nil, err
	}
	if bond.MaxJudgeFee, err = parseAmount(maxFee); err != nil {
		return nil, err
	}
	return &bond, nil
}

// parseAmount converts a NUMERIC rendered as text into a big.Int.
func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// nullTime maps the zero time to NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Compile-time interface check.
var _ domain.BondStore = (*BondStore)(nil)
