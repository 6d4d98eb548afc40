package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/engine"
	"github.com/alanyoungcy/marketengine/internal/payout"
)

// RecordingTransferer completes withdrawals by writing a transfer record to
// the durable store. A store failure fails the transfer, which makes the
// payout ledger restore the debited balance.
type RecordingTransferer struct {
	store domain.TransferStore
}

// NewRecordingTransferer creates a RecordingTransferer over store.
func NewRecordingTransferer(store domain.TransferStore) *RecordingTransferer {
	return &RecordingTransferer{store: store}
}

// Transfer records the outbound transfer.
func (t *RecordingTransferer) Transfer(ctx context.Context, to common.Address, amount uint64) error {
	rec := domain.TransferRecord{
		ID:        uuid.NewString(),
		Account:   to,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := t.store.Insert(ctx, rec); err != nil {
		return fmt.Errorf("record transfer %s: %w", rec.ID, err)
	}
	return nil
}

// NullTransferer accepts every transfer without recording it. Used when no
// transfer store is configured.
type NullTransferer struct{}

// Transfer always succeeds.
func (NullTransferer) Transfer(context.Context, common.Address, uint64) error { return nil }

// TreasuryService exposes the payout ledger and fee share tables: balances,
// withdrawals, and earnings projections.
type TreasuryService struct {
	fees      *engine.FeeEngine
	payouts   *payout.Ledger
	transfers domain.TransferStore
	emitter   *Emitter
	logger    *slog.Logger
}

// NewTreasuryService creates a TreasuryService. transfers may be nil.
func NewTreasuryService(fees *engine.FeeEngine, payouts *payout.Ledger, transfers domain.TransferStore, emitter *Emitter, logger *slog.Logger) *TreasuryService {
	return &TreasuryService{
		fees:      fees,
		payouts:   payouts,
		transfers: transfers,
		emitter:   emitter,
		logger:    logger,
	}
}

// Balance returns the withdrawable balance of account.
func (s *TreasuryService) Balance(ctx context.Context, account common.Address) uint64 {
	return s.payouts.Balance(account)
}

// Withdraw pays out the full balance of account and announces the transfer.
func (s *TreasuryService) Withdraw(ctx context.Context, account common.Address) (uint64, error) {
	amount, err := s.payouts.Withdraw(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("treasury_service: withdraw %s: %w", account.Hex(), err)
	}

	s.emitter.Emit(ctx, domain.ChannelPayouts, domain.EventWithdrawal,
		domain.WithdrawalEvent{Account: account, Amount: amount},
		map[string]any{
			"account": account.Hex(),
			"amount":  amount,
		},
	)

	s.logger.InfoContext(ctx, "treasury_service: withdrawal completed",
		slog.String("account", account.Hex()),
		slog.Uint64("amount", amount),
	)
	return amount, nil
}

// Distribute splits a standalone fee amount across the share table and
// credits the payout ledger. Resolution fees flow through the resolution
// engine; this covers fees collected outside a market settlement.
func (s *TreasuryService) Distribute(ctx context.Context, fee uint64) (domain.FeeDistribution, error) {
	dist, err := s.fees.Distribute(fee)
	if err != nil {
		return domain.FeeDistribution{}, fmt.Errorf("treasury_service: distribute fee %d: %w", fee, err)
	}

	s.emitter.Emit(ctx, domain.ChannelFees, domain.EventFeeDistributed,
		domain.FeeDistributedEvent{Fee: dist.Fee, Pools: dist.Pools, Dust: dist.Dust},
		map[string]any{
			"fee":  dist.Fee,
			"dust": dist.Dust,
		},
	)
	return dist, nil
}

// Shares returns the configured fee share table with effective percentages.
func (s *TreasuryService) Shares(ctx context.Context) []domain.PoolShare {
	return s.fees.ShareBreakdown()
}

// ProjectedEarnings estimates what a holder with holderTokens tokens would
// earn from the token pool if a market with the given volume resolved now.
func (s *TreasuryService) ProjectedEarnings(ctx context.Context, volume, holderTokens uint64) uint64 {
	return s.fees.ProjectedHolderEarnings(volume, holderTokens)
}

// ListTransfers returns the completed withdrawal transfers of account.
func (s *TreasuryService) ListTransfers(ctx context.Context, account common.Address, opts domain.ListOpts) ([]domain.TransferRecord, error) {
	if s.transfers == nil {
		return nil, nil
	}
	recs, err := s.transfers.ListByAccount(ctx, account, opts)
	if err != nil {
		return nil, fmt.Errorf("treasury_service: list transfers for %s: %w", account.Hex(), err)
	}
	return recs, nil
}
