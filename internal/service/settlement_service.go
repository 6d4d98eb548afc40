package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/marketengine/internal/crypto"
	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/engine"
)

// SettlementService verifies oracle signatures, drives the resolution
// engine, and archives every settlement and fee distribution.
type SettlementService struct {
	engine  *engine.ResolutionEngine
	cache   domain.MarketCache
	store   domain.SettlementStore
	emitter *Emitter
	logger  *slog.Logger
}

// NewSettlementService creates a SettlementService. cache and store may be
// nil when the corresponding backend is not configured.
func NewSettlementService(eng *engine.ResolutionEngine, cache domain.MarketCache, store domain.SettlementStore, emitter *Emitter, logger *slog.Logger) *SettlementService {
	return &SettlementService{
		engine:  eng,
		cache:   cache,
		store:   store,
		emitter: emitter,
		logger:  logger,
	}
}

// Resolve recovers the oracle address from sig over the resolution digest of
// (marketID, observedText, evidence) and settles the market as that oracle.
// The engine rejects recovered addresses outside the resolver allow-list.
func (s *SettlementService) Resolve(ctx context.Context, marketID uint64, observedText string, evidence common.Hash, sig []byte) (domain.Settlement, error) {
	oracle, err := crypto.RecoverResolver(marketID, observedText, evidence, sig)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("settlement_service: recover resolver: %w: %v", domain.ErrNotAuthorized, err)
	}
	return s.ResolveAs(ctx, marketID, observedText, evidence, oracle)
}

// ResolveAs settles a market on behalf of an already-authenticated oracle
// address.
func (s *SettlementService) ResolveAs(ctx context.Context, marketID uint64, observedText string, evidence common.Hash, oracle common.Address) (domain.Settlement, error) {
	settlement, dist, err := s.engine.Resolve(marketID, observedText, evidence, oracle, time.Now().UTC())
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("settlement_service: resolve market %d: %w", marketID, err)
	}

	s.invalidate(ctx, marketID)
	s.archive(ctx, settlement, dist)

	s.emitter.Emit(ctx, domain.ChannelResolved, domain.EventMarketResolved,
		domain.MarketResolvedEvent{
			MarketID: settlement.MarketID,
			WinnerID: settlement.WinnerID,
			Distance: settlement.Distance,
			Evidence: settlement.Evidence,
			Volume:   settlement.Volume,
			Fee:      settlement.Fee,
			Refund:   settlement.Refund,
		},
		map[string]any{
			"market_id": settlement.MarketID,
			"winner_id": settlement.WinnerID,
			"distance":  settlement.Distance,
			"oracle":    settlement.Oracle.Hex(),
			"volume":    settlement.Volume,
			"fee":       settlement.Fee,
			"refund":    settlement.Refund,
		},
	)

	if dist != nil {
		s.emitter.Emit(ctx, domain.ChannelFees, domain.EventFeeDistributed,
			domain.FeeDistributedEvent{
				Fee:   dist.Fee,
				Pools: dist.Pools,
				Dust:  dist.Dust,
			},
			map[string]any{
				"market_id": settlement.MarketID,
				"fee":       dist.Fee,
				"dust":      dist.Dust,
			},
		)
		for _, h := range dist.Holders {
			s.emitter.Emit(ctx, domain.ChannelFees, domain.EventHolderCredited,
				domain.HolderCreditedEvent{
					Holder: h.Holder,
					Tokens: h.Tokens,
					Amount: h.Amount,
				},
				nil,
			)
		}
	}

	s.logger.InfoContext(ctx, "settlement_service: market resolved",
		slog.Uint64("market_id", settlement.MarketID),
		slog.Uint64("winner_id", settlement.WinnerID),
		slog.Int("distance", settlement.Distance),
		slog.Uint64("volume", settlement.Volume),
		slog.Uint64("fee", settlement.Fee),
		slog.Bool("refund", settlement.Refund),
	)
	return settlement, nil
}

// Cancel aborts a market and refunds every stake and bet in full.
func (s *SettlementService) Cancel(ctx context.Context, marketID uint64) (domain.Settlement, error) {
	settlement, err := s.engine.Cancel(marketID, time.Now().UTC())
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("settlement_service: cancel market %d: %w", marketID, err)
	}

	s.invalidate(ctx, marketID)
	s.archive(ctx, settlement, nil)

	s.emitter.Emit(ctx, domain.ChannelResolved, domain.EventMarketCancelled,
		domain.MarketCancelledEvent{
			MarketID: settlement.MarketID,
			Refunded: settlement.Volume,
		},
		map[string]any{
			"market_id": settlement.MarketID,
			"refunded":  settlement.Volume,
		},
	)

	s.logger.InfoContext(ctx, "settlement_service: market cancelled",
		slog.Uint64("market_id", settlement.MarketID),
		slog.Uint64("refunded", settlement.Volume),
	)
	return settlement, nil
}

// GetSettlement loads one archived settlement.
func (s *SettlementService) GetSettlement(ctx context.Context, marketID uint64) (domain.Settlement, error) {
	if s.store == nil {
		return domain.Settlement{}, domain.ErrNotFound
	}
	settlement, err := s.store.GetSettlement(ctx, marketID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("settlement_service: get settlement %d: %w", marketID, err)
	}
	return settlement, nil
}

// ListSettlements lists archived settlements.
func (s *SettlementService) ListSettlements(ctx context.Context, opts domain.ListOpts) ([]domain.Settlement, error) {
	if s.store == nil {
		return nil, nil
	}
	rows, err := s.store.ListSettlements(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("settlement_service: list settlements: %w", err)
	}
	return rows, nil
}

// ListDistributions lists archived fee distributions.
func (s *SettlementService) ListDistributions(ctx context.Context, opts domain.ListOpts) ([]domain.FeeDistribution, error) {
	if s.store == nil {
		return nil, nil
	}
	rows, err := s.store.ListDistributions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("settlement_service: list distributions: %w", err)
	}
	return rows, nil
}

// archive persists the settlement and distribution. Archival failures are
// logged, not returned: the in-memory settlement already committed and must
// not appear to have failed.
func (s *SettlementService) archive(ctx context.Context, settlement domain.Settlement, dist *domain.FeeDistribution) {
	if s.store == nil {
		return
	}
	if err := s.store.InsertSettlement(ctx, settlement); err != nil {
		s.logger.ErrorContext(ctx, "settlement_service: archive settlement failed",
			slog.Uint64("market_id", settlement.MarketID),
			slog.String("error", err.Error()),
		)
	}
	if dist != nil {
		if err := s.store.InsertDistribution(ctx, *dist); err != nil {
			s.logger.ErrorContext(ctx, "settlement_service: archive distribution failed",
				slog.Uint64("market_id", settlement.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *SettlementService) invalidate(ctx context.Context, marketID uint64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, marketID); err != nil {
		s.logger.WarnContext(ctx, "settlement_service: cache invalidate failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
}
