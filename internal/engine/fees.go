// Package engine contains the two settlement components: the resolution
// engine that settles closed markets and the fee engine that splits platform
// fees across stakeholder pools and ownership-token holders.
package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/payout"
)

// HolderSource is the read-only view of the ownership-token registry that
// fee distribution needs.
type HolderSource interface {
	Holders() []domain.TokenHolder
	TotalMinted() uint64
	MaxSupply() uint64
}

// FeeEngine splits platform fees across the share table's weighted pools.
// The token pool's amount is further divided pro-rata across token holders
// using the fixed maximum supply as denominator, so each token's share of
// every fee is constant over the life of the registry regardless of how much
// of the supply has been minted. The unminted remainder and all floor-
// division dust accrue to the reserve account.
type FeeEngine struct {
	table   domain.ShareTable
	holders HolderSource
	payouts *payout.Ledger
	reserve common.Address
}

// NewFeeEngine validates the share table and returns a FeeEngine. A table
// whose weights do not sum to the configured fee rate is a deploy-time
// defect, rejected here once rather than on every distribution.
func NewFeeEngine(table domain.ShareTable, holders HolderSource, payouts *payout.Ledger, reserve common.Address) (*FeeEngine, error) {
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("engine: fee table: %w", err)
	}
	return &FeeEngine{
		table:   table,
		holders: holders,
		payouts: payouts,
		reserve: reserve,
	}, nil
}

// Distribute splits fee across the share table and credits the payout
// ledger atomically. Conservation holds exactly: every unit of fee lands in
// a pool recipient's balance, a holder's balance, or the reserve.
func (e *FeeEngine) Distribute(fee uint64) (domain.FeeDistribution, error) {
	dist, credits := e.Plan(fee)
	if err := e.payouts.CreditAll(credits); err != nil {
		return domain.FeeDistribution{}, fmt.Errorf("engine: distribute %d: %w", fee, err)
	}
	return dist, nil
}

// Plan computes a distribution without touching any ledger. The resolution
// engine merges the returned credits with winner payouts so a whole market
// settlement commits as one batch.
func (e *FeeEngine) Plan(fee uint64) (domain.FeeDistribution, map[common.Address]uint64) {
	dist := domain.FeeDistribution{Fee: fee}
	credits := make(map[common.Address]uint64)
	distributed := uint64(0)

	for _, pool := range e.table.Pools {
		amount := mulDiv(fee, pool.Bps, e.table.TotalFeeBps)
		distributed += amount

		if pool.TokenPool {
			holderTotal := e.planTokenPool(amount, &dist, credits)
			// Token-pool units not reaching any holder stay with the
			// reserve.
			dist.Dust += amount - holderTotal
			continue
		}

		dist.Pools = append(dist.Pools, domain.PoolPayout{
			Name:      pool.Name,
			Recipient: pool.Recipient,
			Amount:    amount,
		})
		credits[pool.Recipient] += amount
	}

	// Per-pool floor division leaves a remainder of the fee itself.
	dist.Dust += fee - distributed

	if dist.Dust > 0 {
		credits[e.reserve] += dist.Dust
	}
	return dist, credits
}

// planTokenPool splits the token pool's amount across current holders over
// the fixed maximum supply and returns the total actually assigned.
func (e *FeeEngine) planTokenPool(amount uint64, dist *domain.FeeDistribution, credits map[common.Address]uint64) uint64 {
	if e.holders.TotalMinted() == 0 {
		// No minted tokens: the whole pool accrues to the reserve instead
		// of dividing by an empty holder set.
		return 0
	}

	denom := e.holders.MaxSupply()
	var total uint64
	for _, h := range e.holders.Holders() {
		share := mulDiv(amount, h.Tokens, denom)
		if share == 0 {
			continue
		}
		dist.Holders = append(dist.Holders, domain.HolderPayout{
			Holder: h.Address,
			Tokens: h.Tokens,
			Amount: share,
		})
		credits[h.Address] += share
		total += share
	}
	return total
}

// ShareBreakdown returns the immutable fee schedule as (pool, bps) rows.
func (e *FeeEngine) ShareBreakdown() []domain.PoolShare {
	out := make([]domain.PoolShare, 0, len(e.table.Pools))
	for _, p := range e.table.Pools {
		out = append(out, domain.PoolShare{Name: p.Name, Bps: p.Bps})
	}
	return out
}

// ProjectedHolderEarnings estimates what an account holding holderTokens
// ownership tokens would earn from a market of the given volume. It applies
// the exact live formula: platform fee, then token-pool share, then pro-rata
// split over the maximum supply.
func (e *FeeEngine) ProjectedHolderEarnings(volume, holderTokens uint64) uint64 {
	fee := mulDiv(volume, e.table.TotalFeeBps, domain.BpsDenominator)
	tokenPool := mulDiv(fee, e.table.TokenPoolBps(), e.table.TotalFeeBps)
	return mulDiv(tokenPool, holderTokens, e.holders.MaxSupply())
}

// TotalFeeBps returns the configured platform fee rate.
func (e *FeeEngine) TotalFeeBps() uint64 {
	return e.table.TotalFeeBps
}
