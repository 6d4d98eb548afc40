package domain

import "github.com/ethereum/go-ethereum/common"

// TokenHolder is one row of the bounded holder enumeration: an address and
// the number of ownership tokens it holds. Enumeration order is first-mint
// order, which keeps distributions reproducible.
type TokenHolder struct {
	Address common.Address `json:"address"`
	Tokens  uint64         `json:"tokens"`
}
