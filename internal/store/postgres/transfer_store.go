package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// TransferStore implements domain.TransferStore using PostgreSQL. One row per
// completed withdrawal transfer.
type TransferStore struct {
	pool *pgxpool.Pool
}

// NewTransferStore creates a new TransferStore backed by the given pool.
func NewTransferStore(pool *pgxpool.Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

// Insert records a completed transfer.
func (s *TransferStore) Insert(ctx context.Context, rec domain.TransferRecord) error {
	const query = `INSERT INTO transfers (id, account, amount, created_at) VALUES ($1, $2, $3, $4)`
	_, err := s.pool.Exec(ctx, query, rec.ID, rec.Account.Hex(), rec.Amount, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert transfer %s: %w", rec.ID, err)
	}
	return nil
}

// ListByAccount returns an account's transfers newest first.
func (s *TransferStore) ListByAccount(ctx context.Context, account common.Address, opts domain.ListOpts) ([]domain.TransferRecord, error) {
	query := `SELECT id, account, amount, created_at FROM transfers WHERE account = $1 ORDER BY created_at DESC`
	args := []any{account.Hex()}
	if opts.Limit > 0 {
		query += " LIMIT $2"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET $3"
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transfers for %s: %w", account.Hex(), err)
	}
	defer rows.Close()

	var out []domain.TransferRecord
	for rows.Next() {
		var rec domain.TransferRecord
		var acct string
		if err := rows.Scan(&rec.ID, &acct, &rec.Amount, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan transfer: %w", err)
		}
		rec.Account = common.HexToAddress(acct)
		out = append(out, rec)
	}
	return out, rows.Err()
}
