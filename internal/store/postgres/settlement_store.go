package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// SettlementStore implements domain.SettlementStore using PostgreSQL. It
// archives the conserved outcome of every resolved market and every fee
// distribution; the in-memory ledger stays authoritative.
type SettlementStore struct {
	pool *pgxpool.Pool
}

// NewSettlementStore creates a new SettlementStore backed by the given pool.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

// InsertSettlement archives one settled market.
func (s *SettlementStore) InsertSettlement(ctx context.Context, st domain.Settlement) error {
	payouts, err := json.Marshal(st.Payouts)
	if err != nil {
		return fmt.Errorf("postgres: marshal payouts for market %d: %w", st.MarketID, err)
	}

	const query = `
		INSERT INTO settlements (
			market_id, winner_id, distance, observed_text, evidence,
			oracle, volume, fee, dust, refund, payouts, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = s.pool.Exec(ctx, query,
		st.MarketID, st.WinnerID, st.Distance, st.ObservedText,
		st.Evidence.Hex(), st.Oracle.Hex(),
		st.Volume, st.Fee, st.Dust, st.Refund, payouts, st.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert settlement for market %d: %w", st.MarketID, err)
	}
	return nil
}

// GetSettlement returns the archived settlement for a market, or
// domain.ErrNotFound.
func (s *SettlementStore) GetSettlement(ctx context.Context, marketID uint64) (domain.Settlement, error) {
	const query = `
		SELECT market_id, winner_id, distance, observed_text, evidence,
		       oracle, volume, fee, dust, refund, payouts, resolved_at
		FROM settlements WHERE market_id = $1`

	st, err := scanSettlement(s.pool.QueryRow(ctx, query, marketID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Settlement{}, domain.ErrNotFound
		}
		return domain.Settlement{}, fmt.Errorf("postgres: get settlement for market %d: %w", marketID, err)
	}
	return st, nil
}

// ListSettlements returns archived settlements newest first, bounded by the
// resolved-at window in opts.
func (s *SettlementStore) ListSettlements(ctx context.Context, opts domain.ListOpts) ([]domain.Settlement, error) {
	query, args := listWindow(`
		SELECT market_id, winner_id, distance, observed_text, evidence,
		       oracle, volume, fee, dust, refund, payouts, resolved_at
		FROM settlements WHERE 1=1`, "resolved_at", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements: %w", err)
	}
	defer rows.Close()

	var out []domain.Settlement
	for rows.Next() {
		st, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan settlement: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// InsertDistribution archives one fee distribution.
func (s *SettlementStore) InsertDistribution(ctx context.Context, d domain.FeeDistribution) error {
	pools, err := json.Marshal(d.Pools)
	if err != nil {
		return fmt.Errorf("postgres: marshal distribution pools: %w", err)
	}
	holders, err := json.Marshal(d.Holders)
	if err != nil {
		return fmt.Errorf("postgres: marshal distribution holders: %w", err)
	}

	const query = `INSERT INTO fee_distributions (fee, dust, pools, holders) VALUES ($1, $2, $3, $4)`
	if _, err := s.pool.Exec(ctx, query, d.Fee, d.Dust, pools, holders); err != nil {
		return fmt.Errorf("postgres: insert fee distribution: %w", err)
	}
	return nil
}

// ListDistributions returns archived fee distributions newest first, bounded
// by the created-at window in opts.
func (s *SettlementStore) ListDistributions(ctx context.Context, opts domain.ListOpts) ([]domain.FeeDistribution, error) {
	query, args := listWindow(`SELECT fee, dust, pools, holders FROM fee_distributions WHERE 1=1`,
		"created_at", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fee distributions: %w", err)
	}
	defer rows.Close()

	var out []domain.FeeDistribution
	for rows.Next() {
		var d domain.FeeDistribution
		var pools, holders []byte
		if err := rows.Scan(&d.Fee, &d.Dust, &pools, &holders); err != nil {
			return nil, fmt.Errorf("postgres: scan fee distribution: %w", err)
		}
		if err := json.Unmarshal(pools, &d.Pools); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal distribution pools: %w", err)
		}
		if err := json.Unmarshal(holders, &d.Holders); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal distribution holders: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// scanSettlement reads one settlement row from either a Row or Rows cursor.
func scanSettlement(row pgx.Row) (domain.Settlement, error) {
	var st domain.Settlement
	var evidence, oracle string
	var payouts []byte

	err := row.Scan(&st.MarketID, &st.WinnerID, &st.Distance, &st.ObservedText,
		&evidence, &oracle, &st.Volume, &st.Fee, &st.Dust, &st.Refund,
		&payouts, &st.ResolvedAt)
	if err != nil {
		return domain.Settlement{}, err
	}

	st.Evidence = common.HexToHash(evidence)
	st.Oracle = common.HexToAddress(oracle)
	if err := json.Unmarshal(payouts, &st.Payouts); err != nil {
		return domain.Settlement{}, err
	}
	return st, nil
}
