package domain

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Event names, used as the journal event column and as the suffix of the
// pub/sub channel an envelope is published on.
const (
	EventMarketOpened      = "market_opened"
	EventSubmissionCreated = "submission_created"
	EventBetPlaced         = "bet_placed"
	EventMarketResolved    = "market_resolved"
	EventMarketCancelled   = "market_cancelled"
	EventFeeDistributed    = "fee_distributed"
	EventHolderCredited    = "holder_credited"
	EventWithdrawal        = "withdrawal_completed"
	EventTokensMinted      = "tokens_minted"
	EventMintFinalized     = "mint_finalized"
)

// Channel names for the signal bus. The hub relays all of them to WebSocket
// clients.
const (
	ChannelMarkets  = "ch:markets"
	ChannelBets     = "ch:bets"
	ChannelResolved = "ch:resolved"
	ChannelFees     = "ch:fees"
	ChannelPayouts  = "ch:payouts"
	ChannelRegistry = "ch:registry"
)

// EventEnvelope wraps every published event with an id, name, and timestamp
// so consumers can dedup and order without inspecting the payload.
type EventEnvelope struct {
	ID        string          `json:"id"`
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewEnvelope wraps payload in an EventEnvelope with a fresh UUID. Marshal
// errors are impossible for the engine's own payload types, so they surface
// as an empty payload rather than failing the enclosing operation.
func NewEnvelope(event string, payload any) EventEnvelope {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = nil
	}
	return EventEnvelope{
		ID:        uuid.NewString(),
		Event:     event,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}
}

// MarketOpenedEvent announces a newly opened market.
type MarketOpenedEvent struct {
	MarketID uint64         `json:"market_id"`
	Creator  common.Address `json:"creator"`
	Subject  string         `json:"subject"`
	EndTime  time.Time      `json:"end_time"`
	Cutoff   time.Time      `json:"cutoff"`
}

// SubmissionCreatedEvent announces a new staked prediction.
type SubmissionCreatedEvent struct {
	SubmissionID uint64         `json:"submission_id"`
	MarketID     uint64         `json:"market_id"`
	Creator      common.Address `json:"creator"`
	Stake        uint64         `json:"stake"`
}

// BetPlacedEvent announces a new bet on a submission.
type BetPlacedEvent struct {
	BetID        uint64         `json:"bet_id"`
	SubmissionID uint64         `json:"submission_id"`
	MarketID     uint64         `json:"market_id"`
	Bettor       common.Address `json:"bettor"`
	Amount       uint64         `json:"amount"`
}

// MarketResolvedEvent carries the winner and its distance to the observed
// outcome, plus the conserved settlement totals.
type MarketResolvedEvent struct {
	MarketID uint64      `json:"market_id"`
	WinnerID uint64      `json:"winner_id"`
	Distance int         `json:"distance"`
	Evidence common.Hash `json:"evidence"`
	Volume   uint64      `json:"volume"`
	Fee      uint64      `json:"fee"`
	Refund   bool        `json:"refund"`
}

// MarketCancelledEvent announces an administrative abort with full refunds.
type MarketCancelledEvent struct {
	MarketID uint64 `json:"market_id"`
	Refunded uint64 `json:"refunded"`
}

// FeeDistributedEvent carries the per-pool amounts of one distribution.
type FeeDistributedEvent struct {
	Fee   uint64       `json:"fee"`
	Pools []PoolPayout `json:"pools"`
	Dust  uint64       `json:"dust"`
}

// HolderCreditedEvent announces one holder's token-pool credit.
type HolderCreditedEvent struct {
	Holder common.Address `json:"holder"`
	Tokens uint64         `json:"tokens"`
	Amount uint64         `json:"amount"`
}

// WithdrawalEvent announces a completed pull-based withdrawal.
type WithdrawalEvent struct {
	Account common.Address `json:"account"`
	Amount  uint64         `json:"amount"`
}

// TokensMintedEvent announces a successful mint batch.
type TokensMintedEvent struct {
	To     common.Address `json:"to"`
	Count  uint64         `json:"count"`
	Minted uint64         `json:"minted"`
}
