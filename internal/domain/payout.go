package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Transferer executes the external transfer that completes a withdrawal. The
// payout ledger zeroes the balance before calling Transfer and restores it if
// Transfer fails, so implementations may fail freely without corrupting
// balances.
type Transferer interface {
	Transfer(ctx context.Context, to common.Address, amount uint64) error
}

// TransferRecord is the durable trace of one completed withdrawal transfer.
type TransferRecord struct {
	ID        string         `json:"id"`
	Account   common.Address `json:"account"`
	Amount    uint64         `json:"amount"`
	CreatedAt time.Time      `json:"created_at"`
}
