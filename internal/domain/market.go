package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MaxTextLen bounds the length of every prediction text and observed outcome
// text, in runes. Keeping both inputs bounded caps the edit-distance table at
// (MaxTextLen+1)^2 cells, so resolution cost is statically bounded.
const MaxTextLen = 280

// MarketStatus represents the lifecycle state of a prediction market.
type MarketStatus string

const (
	MarketStatusOpen      MarketStatus = "open"
	MarketStatusClosed    MarketStatus = "closed"
	MarketStatusResolved  MarketStatus = "resolved"
	MarketStatusCancelled MarketStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s MarketStatus) Terminal() bool {
	return s == MarketStatusResolved || s == MarketStatusCancelled
}

// Market is a prediction market over a free-text outcome. Created when the
// market opens; mutated only at close and resolution; never deleted.
type Market struct {
	ID        uint64       `json:"id"`
	Creator   common.Address `json:"creator"`
	Subject   string       `json:"subject"`
	OpenTime  time.Time    `json:"open_time"`
	EndTime   time.Time    `json:"end_time"`
	// Cutoff is the instant after which no new submissions or bets are
	// accepted, strictly before EndTime.
	Cutoff    time.Time    `json:"cutoff"`
	Status    MarketStatus `json:"status"`
	// Volume is the exact sum of every stake and bet placed on the market.
	// Accumulation never rounds; only payout division does.
	Volume    uint64       `json:"volume"`
	// Fee is the platform fee extracted at resolution, zero until then and
	// zero forever for single-submission and cancelled markets.
	Fee       uint64       `json:"fee"`
	WinnerID  uint64       `json:"winner_id,omitempty"`
	ResolvedAt *time.Time  `json:"resolved_at,omitempty"`
}

// Submission is one predicted outcome text staked into a market. Immutable
// after creation except for the two resolution-time fields.
type Submission struct {
	ID       uint64         `json:"id"`
	MarketID uint64         `json:"market_id"`
	Creator  common.Address `json:"creator"`
	Text     string         `json:"text"`
	Stake    uint64         `json:"stake"`
	// BetTotal is the exact sum of all bets placed on this submission.
	BetTotal uint64         `json:"bet_total"`

	// Populated only at resolution.
	Distance int  `json:"distance,omitempty"`
	Winner   bool `json:"winner,omitempty"`
}

// Bet backs a single submission with an amount. Immutable.
type Bet struct {
	ID           uint64         `json:"id"`
	SubmissionID uint64         `json:"submission_id"`
	Bettor       common.Address `json:"bettor"`
	Amount       uint64         `json:"amount"`
	PlacedAt     time.Time      `json:"placed_at"`
}
