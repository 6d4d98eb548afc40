package domain

import "errors"

// Input validation failures, rejected before any state change.
var (
	ErrInvalidDuration   = errors.New("invalid market duration")
	ErrTextTooLong       = errors.New("prediction text too long")
	ErrStakeBelowMinimum = errors.New("stake below minimum")
	ErrBatchTooLarge     = errors.New("mint batch too large")
	ErrEmptyBatch        = errors.New("empty mint batch")
	ErrZeroAddress       = errors.New("zero address")
)

// State and ordering violations, rejected with no partial effect.
var (
	ErrMarketClosedForEntry = errors.New("market closed for entry")
	ErrMarketStillOpen      = errors.New("market still open")
	ErrAlreadyResolved      = errors.New("market already resolved")
	ErrAlreadyFinalized     = errors.New("minting already finalized")
	ErrNotAuthorized        = errors.New("not an authorized resolver")
	ErrUnknownMarket        = errors.New("unknown market")
	ErrUnknownSubmission    = errors.New("unknown submission")
)

// Resource exhaustion; the caller must retry with smaller input.
var (
	ErrSupplyExceeded  = errors.New("token supply exceeded")
	ErrBalanceOverflow = errors.New("balance overflow")
)

// Transfer failures, isolated to the withdrawing account.
var (
	ErrNothingToWithdraw = errors.New("nothing to withdraw")
	ErrTransferFailed    = errors.New("transfer failed")
)

// Deploy-time configuration defects.
var (
	ErrSumMismatch = errors.New("share table does not sum to fee rate")
)

// Infrastructure sentinels.
var (
	ErrNotFound = errors.New("not found")
)
