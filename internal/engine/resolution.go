package engine

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/ledger"
	"github.com/alanyoungcy/marketengine/internal/payout"
	"github.com/alanyoungcy/marketengine/internal/resolver"
)

// Authorizer answers whether an identity may resolve markets.
type Authorizer interface {
	IsAuthorizedResolver(addr common.Address) bool
}

// ResolutionEngine settles closed markets: it picks the winning submission by
// minimum edit distance to the oracle's observed text, extracts the platform
// fee, pays out the winner's stakeholders, and hands the fee to the fee
// engine. A single mutex serializes Resolve and Cancel; the market status
// field makes each market settle at most once.
type ResolutionEngine struct {
	mu sync.Mutex

	markets *ledger.Ledger
	payouts *payout.Ledger
	fees    *FeeEngine
	auth    Authorizer
	reserve common.Address
}

// NewResolutionEngine wires the resolution engine to its collaborators.
func NewResolutionEngine(markets *ledger.Ledger, payouts *payout.Ledger, fees *FeeEngine, auth Authorizer, reserve common.Address) *ResolutionEngine {
	return &ResolutionEngine{
		markets: markets,
		payouts: payouts,
		fees:    fees,
		auth:    auth,
		reserve: reserve,
	}
}

// Resolve settles a market against the oracle's observed outcome text. All
// ledger credits for the settlement, including the fee distribution, commit
// as a single batch; a failure anywhere leaves no partial state. The
// returned FeeDistribution is nil when no fee was extracted.
func (e *ResolutionEngine) Resolve(marketID uint64, observedText string, evidence common.Hash, oracle common.Address, now time.Time) (domain.Settlement, *domain.FeeDistribution, error) {
	if !e.auth.IsAuthorizedResolver(oracle) {
		return domain.Settlement{}, nil, fmt.Errorf("engine: resolve market %d: %w", marketID, domain.ErrNotAuthorized)
	}
	if utf8.RuneCountInString(observedText) > domain.MaxTextLen {
		return domain.Settlement{}, nil, fmt.Errorf("engine: resolve market %d: %w", marketID, domain.ErrTextTooLong)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.markets.Market(marketID)
	if err != nil {
		return domain.Settlement{}, nil, err
	}
	if m.Status.Terminal() {
		return domain.Settlement{}, nil, fmt.Errorf("engine: resolve market %d: %w", marketID, domain.ErrAlreadyResolved)
	}
	if now.Before(m.EndTime) {
		return domain.Settlement{}, nil, fmt.Errorf("engine: resolve market %d: %w", marketID, domain.ErrMarketStillOpen)
	}
	// Lazily close a market that ran past its end time, then re-read so the
	// settlement works from the frozen volume.
	if m.Status == domain.MarketStatusOpen {
		if err := e.markets.Close(marketID, now); err != nil {
			return domain.Settlement{}, nil, err
		}
		if m, err = e.markets.Market(marketID); err != nil {
			return domain.Settlement{}, nil, err
		}
	}

	subs, err := e.markets.Submissions(marketID)
	if err != nil {
		return domain.Settlement{}, nil, err
	}

	s := domain.Settlement{
		MarketID:     marketID,
		ObservedText: observedText,
		Evidence:     evidence,
		Oracle:       oracle,
		Volume:       m.Volume,
		ResolvedAt:   now,
	}

	var credits map[common.Address]uint64
	var feeDist *domain.FeeDistribution
	var distances map[uint64]int

	switch {
	case len(subs) == 0:
		// Nothing staked, nothing to settle.
		s.Refund = true

	case len(subs) == 1:
		// A market with a single submission had nothing to compete
		// against: everyone is made whole and no fee is taken.
		s.Refund = true
		s.WinnerID = subs[0].ID
		credits, err = e.refundCredits(subs)
		if err != nil {
			return domain.Settlement{}, nil, err
		}
		s.Payouts = creditList(credits)

	default:
		winner, dists := pickWinner(subs, observedText)
		distances = dists
		s.WinnerID = winner.ID
		s.Distance = dists[winner.ID]
		s.Fee = mulDiv(m.Volume, e.fees.TotalFeeBps(), domain.BpsDenominator)

		credits, s.Dust, err = e.winnerCredits(winner, m.Volume-s.Fee)
		if err != nil {
			return domain.Settlement{}, nil, err
		}
		s.Payouts = creditList(credits)

		if s.Fee > 0 {
			dist, feeCredits := e.fees.Plan(s.Fee)
			feeDist = &dist
			for account, amount := range feeCredits {
				credits[account] += amount
			}
		}
	}

	if len(credits) > 0 {
		if err := e.payouts.CreditAll(credits); err != nil {
			return domain.Settlement{}, nil, fmt.Errorf("engine: resolve market %d: %w", marketID, err)
		}
	}

	if err := e.markets.FinalizeResolution(marketID, s.WinnerID, s.Fee, distances, now); err != nil {
		return domain.Settlement{}, nil, err
	}
	return s, feeDist, nil
}

// Cancel administratively aborts a market: every stake and bet is refunded in
// full and no fee is taken. Valid only before resolution.
func (e *ResolutionEngine) Cancel(marketID uint64, now time.Time) (domain.Settlement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, err := e.markets.Market(marketID)
	if err != nil {
		return domain.Settlement{}, err
	}
	if m.Status.Terminal() {
		return domain.Settlement{}, fmt.Errorf("engine: cancel market %d: %w", marketID, domain.ErrAlreadyResolved)
	}

	subs, err := e.markets.Submissions(marketID)
	if err != nil {
		return domain.Settlement{}, err
	}
	credits, err := e.refundCredits(subs)
	if err != nil {
		return domain.Settlement{}, err
	}

	if len(credits) > 0 {
		if err := e.payouts.CreditAll(credits); err != nil {
			return domain.Settlement{}, fmt.Errorf("engine: cancel market %d: %w", marketID, err)
		}
	}
	if err := e.markets.MarkCancelled(marketID); err != nil {
		return domain.Settlement{}, err
	}

	return domain.Settlement{
		MarketID:   marketID,
		Volume:     m.Volume,
		Payouts:    creditList(credits),
		Refund:     true,
		ResolvedAt: now,
	}, nil
}

// pickWinner computes every submission's distance to the observed text and
// returns the one with the minimum distance. Ties break to the earliest
// submission id, which is deterministic regardless of call order.
func pickWinner(subs []domain.Submission, observedText string) (domain.Submission, map[uint64]int) {
	distances := make(map[uint64]int, len(subs))
	winner := subs[0]
	best := -1

	for _, sub := range subs {
		d := resolver.Distance(sub.Text, observedText)
		distances[sub.ID] = d
		if best < 0 || d < best || (d == best && sub.ID < winner.ID) {
			winner = sub
			best = d
		}
	}
	return winner, distances
}

// winnerCredits splits pot across the winning submission's creator and
// backers, each pro-rata to their contribution against the submission's
// stake plus total bets. The floor remainder goes to the reserve.
func (e *ResolutionEngine) winnerCredits(winner domain.Submission, pot uint64) (map[common.Address]uint64, uint64, error) {
	denom := winner.Stake + winner.BetTotal
	credits := make(map[common.Address]uint64)

	paid := mulDiv(pot, winner.Stake, denom)
	credits[winner.Creator] += paid

	bets, err := e.markets.Bets(winner.ID)
	if err != nil {
		return nil, 0, err
	}
	for _, b := range bets {
		share := mulDiv(pot, b.Amount, denom)
		credits[b.Bettor] += share
		paid += share
	}

	dust := pot - paid
	if dust > 0 {
		credits[e.reserve] += dust
	}
	return credits, dust, nil
}

// refundCredits returns every stake and bet to its owner, exactly.
func (e *ResolutionEngine) refundCredits(subs []domain.Submission) (map[common.Address]uint64, error) {
	credits := make(map[common.Address]uint64)
	for _, sub := range subs {
		credits[sub.Creator] += sub.Stake
		bets, err := e.markets.Bets(sub.ID)
		if err != nil {
			return nil, err
		}
		for _, b := range bets {
			credits[b.Bettor] += b.Amount
		}
	}
	return credits, nil
}

// creditList flattens a credit map into settlement payout rows.
func creditList(credits map[common.Address]uint64) []domain.WinnerPayout {
	out := make([]domain.WinnerPayout, 0, len(credits))
	for account, amount := range credits {
		out = append(out, domain.WinnerPayout{Account: account, Amount: amount})
	}
	return out
}
