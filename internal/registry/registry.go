// Package registry tracks ownership of the fixed-maximum-supply ownership
// token whose holders share the token pool of every fee distribution.
package registry

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// Registry is the bounded-supply ownership-token ledger. Supply is fixed at
// construction and minting is irreversibly frozen by Finalize or by
// exhausting the supply. Token ids are assigned sequentially starting at 1.
type Registry struct {
	mu sync.RWMutex

	maxSupply  uint64
	batchLimit uint64

	minted    uint64
	finalized bool

	owners   map[uint64]common.Address // token id -> owner
	balances map[common.Address]uint64 // owner -> token count

	// holderOrder preserves first-mint order so Holders() is deterministic
	// across calls and across distributions.
	holderOrder []common.Address
}

// New creates an empty registry with the given fixed maximum supply and
// per-call mint batch ceiling.
func New(maxSupply, batchLimit uint64) *Registry {
	return &Registry{
		maxSupply:  maxSupply,
		batchLimit: batchLimit,
		owners:     make(map[uint64]common.Address),
		balances:   make(map[common.Address]uint64),
	}
}

// Mint assigns count new sequential token ids to the given address. Minting
// freezes automatically once the supply is exhausted.
func (r *Registry) Mint(to common.Address, count uint64) error {
	if to == (common.Address{}) {
		return domain.ErrZeroAddress
	}
	if count == 0 {
		return domain.ErrEmptyBatch
	}
	if count > r.batchLimit {
		return domain.ErrBatchTooLarge
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return domain.ErrAlreadyFinalized
	}
	if r.minted+count > r.maxSupply {
		return domain.ErrSupplyExceeded
	}

	if r.balances[to] == 0 {
		r.holderOrder = append(r.holderOrder, to)
	}
	for i := uint64(0); i < count; i++ {
		r.minted++
		r.owners[r.minted] = to
	}
	r.balances[to] += count

	if r.minted == r.maxSupply {
		r.finalized = true
	}
	return nil
}

// Finalize irreversibly freezes minting.
func (r *Registry) Finalize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return domain.ErrAlreadyFinalized
	}
	r.finalized = true
	return nil
}

// Finalized reports whether minting is frozen.
func (r *Registry) Finalized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.finalized
}

// BalanceOf returns the number of tokens held by addr.
func (r *Registry) BalanceOf(addr common.Address) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.balances[addr]
}

// OwnerOf returns the owner of a token id, or the zero address for an
// unminted id.
func (r *Registry) OwnerOf(tokenID uint64) common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owners[tokenID]
}

// TotalMinted returns the number of tokens minted so far.
func (r *Registry) TotalMinted() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.minted
}

// MaxSupply returns the fixed maximum supply.
func (r *Registry) MaxSupply() uint64 {
	return r.maxSupply
}

// Holders returns a snapshot of every address holding at least one token,
// in first-mint order. The slice length is bounded by maxSupply, so
// enumeration cost is predictable.
func (r *Registry) Holders() []domain.TokenHolder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	holders := make([]domain.TokenHolder, 0, len(r.holderOrder))
	for _, addr := range r.holderOrder {
		if n := r.balances[addr]; n > 0 {
			holders = append(holders, domain.TokenHolder{Address: addr, Tokens: n})
		}
	}
	return holders
}
