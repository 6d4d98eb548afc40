package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/ledger"
)

// MarketService handles the market lifecycle up to resolution: opening
// markets, accepting submissions and bets, and serving reads through the
// cache.
type MarketService struct {
	markets *ledger.Ledger
	cache   domain.MarketCache
	emitter *Emitter
	logger  *slog.Logger
}

// NewMarketService creates a MarketService. cache may be nil when Redis is
// not configured; reads then go straight to the ledger.
func NewMarketService(markets *ledger.Ledger, cache domain.MarketCache, emitter *Emitter, logger *slog.Logger) *MarketService {
	return &MarketService{
		markets: markets,
		cache:   cache,
		emitter: emitter,
		logger:  logger,
	}
}

// OpenMarket opens a new market and announces it.
func (s *MarketService) OpenMarket(ctx context.Context, creator common.Address, subject string, duration time.Duration) (domain.Market, error) {
	id, err := s.markets.OpenMarket(creator, subject, time.Now().UTC(), duration)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: open: %w", err)
	}

	m, err := s.markets.Market(id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: read back market %d: %w", id, err)
	}

	s.emitter.Emit(ctx, domain.ChannelMarkets, domain.EventMarketOpened,
		domain.MarketOpenedEvent{
			MarketID: m.ID,
			Creator:  m.Creator,
			Subject:  m.Subject,
			EndTime:  m.EndTime,
			Cutoff:   m.Cutoff,
		},
		map[string]any{
			"market_id": m.ID,
			"creator":   m.Creator.Hex(),
			"subject":   m.Subject,
			"end_time":  m.EndTime,
		},
	)

	s.logger.InfoContext(ctx, "market_service: market opened",
		slog.Uint64("market_id", m.ID),
		slog.String("creator", m.Creator.Hex()),
	)
	return m, nil
}

// Submit records a staked prediction on an open market.
func (s *MarketService) Submit(ctx context.Context, marketID uint64, creator common.Address, text string, stake uint64) (domain.Submission, error) {
	id, err := s.markets.Submit(marketID, creator, text, stake, time.Now().UTC())
	if err != nil {
		return domain.Submission{}, fmt.Errorf("market_service: submit to market %d: %w", marketID, err)
	}

	sub, err := s.markets.Submission(id)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("market_service: read back submission %d: %w", id, err)
	}

	s.invalidate(ctx, marketID)
	s.emitter.Emit(ctx, domain.ChannelMarkets, domain.EventSubmissionCreated,
		domain.SubmissionCreatedEvent{
			SubmissionID: sub.ID,
			MarketID:     sub.MarketID,
			Creator:      sub.Creator,
			Stake:        sub.Stake,
		},
		map[string]any{
			"submission_id": sub.ID,
			"market_id":     sub.MarketID,
			"creator":       sub.Creator.Hex(),
			"stake":         sub.Stake,
		},
	)
	return sub, nil
}

// PlaceBet backs an existing submission with a bet.
func (s *MarketService) PlaceBet(ctx context.Context, submissionID uint64, bettor common.Address, amount uint64) (domain.Bet, error) {
	now := time.Now().UTC()
	id, err := s.markets.Bet(submissionID, bettor, amount, now)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("market_service: bet on submission %d: %w", submissionID, err)
	}

	sub, err := s.markets.Submission(submissionID)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("market_service: read back submission %d: %w", submissionID, err)
	}

	s.invalidate(ctx, sub.MarketID)
	s.emitter.Emit(ctx, domain.ChannelBets, domain.EventBetPlaced,
		domain.BetPlacedEvent{
			BetID:        id,
			SubmissionID: sub.ID,
			MarketID:     sub.MarketID,
			Bettor:       bettor,
			Amount:       amount,
		},
		map[string]any{
			"bet_id":        id,
			"submission_id": sub.ID,
			"market_id":     sub.MarketID,
			"bettor":        bettor.Hex(),
			"amount":        amount,
		},
	)

	return domain.Bet{ID: id, SubmissionID: sub.ID, Bettor: bettor, Amount: amount, PlacedAt: now}, nil
}

// CloseMarket freezes entry on a market whose end time has passed.
func (s *MarketService) CloseMarket(ctx context.Context, marketID uint64) error {
	if err := s.markets.Close(marketID, time.Now().UTC()); err != nil {
		return fmt.Errorf("market_service: close market %d: %w", marketID, err)
	}
	s.invalidate(ctx, marketID)
	return nil
}

// GetMarket retrieves a market by ID, checking the cache first and falling
// back to the ledger on a miss.
func (s *MarketService) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, id); err == nil {
			return m, nil
		}
	}

	m, err := s.markets.Market(id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get market %d: %w", id, err)
	}

	// Back-fill cache; log but do not fail on cache write errors.
	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
			s.logger.WarnContext(ctx, "market_service: cache set failed",
				slog.Uint64("market_id", id),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return m, nil
}

// ListMarkets returns markets straight from the ledger.
func (s *MarketService) ListMarkets(ctx context.Context, opts domain.ListOpts) []domain.Market {
	return s.markets.Markets(opts)
}

// GetSubmission retrieves a single submission.
func (s *MarketService) GetSubmission(ctx context.Context, id uint64) (domain.Submission, error) {
	sub, err := s.markets.Submission(id)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("market_service: get submission %d: %w", id, err)
	}
	return sub, nil
}

// ListSubmissions returns a market's submissions in creation order.
func (s *MarketService) ListSubmissions(ctx context.Context, marketID uint64) ([]domain.Submission, error) {
	subs, err := s.markets.Submissions(marketID)
	if err != nil {
		return nil, fmt.Errorf("market_service: list submissions for market %d: %w", marketID, err)
	}
	return subs, nil
}

// ListBets returns a submission's bets in placement order.
func (s *MarketService) ListBets(ctx context.Context, submissionID uint64) ([]domain.Bet, error) {
	bets, err := s.markets.Bets(submissionID)
	if err != nil {
		return nil, fmt.Errorf("market_service: list bets for submission %d: %w", submissionID, err)
	}
	return bets, nil
}

// invalidate drops a market's cache entry after a write. Non-fatal; the
// entry expires on its own.
func (s *MarketService) invalidate(ctx context.Context, marketID uint64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, marketID); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache invalidate failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
}
