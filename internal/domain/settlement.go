package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// WinnerPayout is one account's share of a settled market's payout pool.
type WinnerPayout struct {
	Account common.Address `json:"account"`
	Amount  uint64         `json:"amount"`
}

// Settlement is the complete, conserved outcome of resolving one market:
//
//	Fee + sum(Payouts) + Dust == Volume
//
// For single-submission markets Fee is zero and Payouts are exact refunds.
type Settlement struct {
	MarketID     uint64         `json:"market_id"`
	WinnerID     uint64         `json:"winner_id"`
	Distance     int            `json:"distance"`
	ObservedText string         `json:"observed_text"`
	Evidence     common.Hash    `json:"evidence"`
	Oracle       common.Address `json:"oracle"`
	Volume       uint64         `json:"volume"`
	Fee          uint64         `json:"fee"`
	Payouts      []WinnerPayout `json:"payouts"`
	Dust         uint64         `json:"dust"`
	// Refund marks the single-submission and cancellation paths, where no
	// winner is picked and no fee is taken.
	Refund     bool      `json:"refund"`
	ResolvedAt time.Time `json:"resolved_at"`
}
