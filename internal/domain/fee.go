package domain

import "github.com/ethereum/go-ethereum/common"

// BpsDenominator is the fixed basis-point scale: 10000 bps == 100%.
const BpsDenominator = 10_000

// Pool is one named stakeholder pool in the share table. Exactly one pool in
// a valid table has TokenPool set; its amount is split pro-rata across
// ownership-token holders instead of going to a single recipient.
type Pool struct {
	Name      string         `json:"name" toml:"name"`
	Bps       uint64         `json:"bps" toml:"bps"`
	Recipient common.Address `json:"recipient" toml:"-"`
	TokenPool bool           `json:"token_pool" toml:"token_pool"`
}

// ShareTable is the immutable fee schedule: a fixed set of weighted pools
// whose weights must sum to the total platform-fee rate in basis points.
type ShareTable struct {
	// TotalFeeBps is the platform fee rate applied to market volume.
	TotalFeeBps uint64
	Pools       []Pool
}

// Validate checks the deploy-time invariant that pool weights sum to the
// configured fee rate and that at most one pool is the token pool.
func (t ShareTable) Validate() error {
	var sum uint64
	tokenPools := 0
	for _, p := range t.Pools {
		sum += p.Bps
		if p.TokenPool {
			tokenPools++
		}
	}
	if sum != t.TotalFeeBps || tokenPools > 1 {
		return ErrSumMismatch
	}
	return nil
}

// TokenPoolBps returns the weight of the token pool, or zero if the table has
// none.
func (t ShareTable) TokenPoolBps() uint64 {
	for _, p := range t.Pools {
		if p.TokenPool {
			return p.Bps
		}
	}
	return 0
}

// PoolShare is one row of the read-only share breakdown.
type PoolShare struct {
	Name string `json:"name"`
	Bps  uint64 `json:"bps"`
}

// PoolPayout records the amount credited to one pool during a distribution.
type PoolPayout struct {
	Name      string         `json:"name"`
	Recipient common.Address `json:"recipient"`
	Amount    uint64         `json:"amount"`
}

// HolderPayout records one holder's pro-rata share of the token pool.
type HolderPayout struct {
	Holder common.Address `json:"holder"`
	Tokens uint64         `json:"tokens"`
	Amount uint64         `json:"amount"`
}

// FeeDistribution is the full outcome of distributing one fee amount:
// per-pool credits, per-holder token-pool credits, and the floor-division
// dust swept to the reserve account. Conservation holds exactly:
//
//	sum(Pools) + sum(Holders) + Dust == Fee
type FeeDistribution struct {
	Fee     uint64         `json:"fee"`
	Pools   []PoolPayout   `json:"pools"`
	Holders []HolderPayout `json:"holders"`
	Dust    uint64         `json:"dust"`
}
