// Package ledger owns the Market, Submission, and Bet tables and the
// betting-window state machine. It is the single writer for all three tables;
// settlement components read through it and finalize resolutions through the
// mutation entry points at the bottom of this file.
package ledger

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// Config carries the ledger's tunable parameters.
type Config struct {
	// MinStake is the minimum stake for a submission and the minimum amount
	// for a bet.
	MinStake uint64

	// CutoffWindow is subtracted from a market's end time to produce the
	// betting cutoff. Clamped so the cutoff never precedes the open time.
	CutoffWindow time.Duration
}

// Ledger is the in-memory market ledger. Identifiers are monotonically
// increasing per table and never reused.
type Ledger struct {
	mu  sync.RWMutex
	cfg Config

	markets     map[uint64]*domain.Market
	submissions map[uint64]*domain.Submission
	bets        map[uint64]*domain.Bet

	marketSubs map[uint64][]uint64 // market id -> submission ids, insertion order
	subBets    map[uint64][]uint64 // submission id -> bet ids, insertion order

	nextMarketID     uint64
	nextSubmissionID uint64
	nextBetID        uint64
}

// New creates an empty Ledger.
func New(cfg Config) *Ledger {
	return &Ledger{
		cfg:         cfg,
		markets:     make(map[uint64]*domain.Market),
		submissions: make(map[uint64]*domain.Submission),
		bets:        make(map[uint64]*domain.Bet),
		marketSubs:  make(map[uint64][]uint64),
		subBets:     make(map[uint64][]uint64),
	}
}

// OpenMarket creates a new market running from now until now+duration.
func (l *Ledger) OpenMarket(creator common.Address, subject string, now time.Time, duration time.Duration) (uint64, error) {
	if duration <= 0 {
		return 0, fmt.Errorf("ledger: open market: %w", domain.ErrInvalidDuration)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	end := now.Add(duration)
	cutoff := end.Add(-l.cfg.CutoffWindow)
	if cutoff.Before(now) {
		cutoff = now
	}

	l.nextMarketID++
	m := &domain.Market{
		ID:       l.nextMarketID,
		Creator:  creator,
		Subject:  subject,
		OpenTime: now,
		EndTime:  end,
		Cutoff:   cutoff,
		Status:   domain.MarketStatusOpen,
	}
	l.markets[m.ID] = m
	return m.ID, nil
}

// Submit stakes a predicted outcome text into an open market. The window
// check uses the caller-supplied now, evaluated at this call.
func (l *Ledger) Submit(marketID uint64, creator common.Address, text string, stake uint64, now time.Time) (uint64, error) {
	if utf8.RuneCountInString(text) > domain.MaxTextLen {
		return 0, fmt.Errorf("ledger: submit: %w", domain.ErrTextTooLong)
	}
	if stake < l.cfg.MinStake || stake == 0 {
		return 0, fmt.Errorf("ledger: submit: %w", domain.ErrStakeBelowMinimum)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.markets[marketID]
	if !ok {
		return 0, fmt.Errorf("ledger: submit: market %d: %w", marketID, domain.ErrUnknownMarket)
	}
	if err := l.entryOpen(m, now); err != nil {
		return 0, fmt.Errorf("ledger: submit: market %d: %w", marketID, err)
	}
	if m.Volume+stake < m.Volume {
		return 0, fmt.Errorf("ledger: submit: market %d: %w", marketID, domain.ErrBalanceOverflow)
	}

	l.nextSubmissionID++
	sub := &domain.Submission{
		ID:       l.nextSubmissionID,
		MarketID: marketID,
		Creator:  creator,
		Text:     text,
		Stake:    stake,
	}
	l.submissions[sub.ID] = sub
	l.marketSubs[marketID] = append(l.marketSubs[marketID], sub.ID)
	m.Volume += stake
	return sub.ID, nil
}

// Bet places an amount on an existing submission, subject to the same window
// rule as Submit.
func (l *Ledger) Bet(submissionID uint64, bettor common.Address, amount uint64, now time.Time) (uint64, error) {
	if amount < l.cfg.MinStake || amount == 0 {
		return 0, fmt.Errorf("ledger: bet: %w", domain.ErrStakeBelowMinimum)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sub, ok := l.submissions[submissionID]
	if !ok {
		return 0, fmt.Errorf("ledger: bet: submission %d: %w", submissionID, domain.ErrUnknownSubmission)
	}
	m := l.markets[sub.MarketID]
	if err := l.entryOpen(m, now); err != nil {
		return 0, fmt.Errorf("ledger: bet: market %d: %w", m.ID, err)
	}
	if m.Volume+amount < m.Volume || sub.BetTotal+amount < sub.BetTotal {
		return 0, fmt.Errorf("ledger: bet: market %d: %w", m.ID, domain.ErrBalanceOverflow)
	}

	l.nextBetID++
	b := &domain.Bet{
		ID:           l.nextBetID,
		SubmissionID: submissionID,
		Bettor:       bettor,
		Amount:       amount,
		PlacedAt:     now,
	}
	l.bets[b.ID] = b
	l.subBets[submissionID] = append(l.subBets[submissionID], b.ID)
	sub.BetTotal += amount
	m.Volume += amount
	return b.ID, nil
}

// entryOpen reports whether the market still accepts submissions and bets at
// the given instant.
func (l *Ledger) entryOpen(m *domain.Market, now time.Time) error {
	if m.Status != domain.MarketStatusOpen {
		return domain.ErrMarketClosedForEntry
	}
	if !now.Before(m.Cutoff) {
		return domain.ErrMarketClosedForEntry
	}
	return nil
}

// Close transitions an open market past its end time to Closed. Resolution
// also performs this transition lazily, so calling Close first is optional.
func (l *Ledger) Close(marketID uint64, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.markets[marketID]
	if !ok {
		return fmt.Errorf("ledger: close: market %d: %w", marketID, domain.ErrUnknownMarket)
	}
	switch m.Status {
	case domain.MarketStatusOpen:
		if now.Before(m.EndTime) {
			return fmt.Errorf("ledger: close: market %d: %w", marketID, domain.ErrMarketStillOpen)
		}
		m.Status = domain.MarketStatusClosed
		return nil
	case domain.MarketStatusClosed:
		return nil
	default:
		return fmt.Errorf("ledger: close: market %d: %w", marketID, domain.ErrAlreadyResolved)
	}
}

// Market returns a snapshot of the market with the given id.
func (l *Ledger) Market(id uint64) (domain.Market, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.markets[id]
	if !ok {
		return domain.Market{}, fmt.Errorf("ledger: market %d: %w", id, domain.ErrUnknownMarket)
	}
	return *m, nil
}

// Submission returns a snapshot of the submission with the given id.
func (l *Ledger) Submission(id uint64) (domain.Submission, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, ok := l.submissions[id]
	if !ok {
		return domain.Submission{}, fmt.Errorf("ledger: submission %d: %w", id, domain.ErrUnknownSubmission)
	}
	return *s, nil
}

// Submissions returns snapshots of a market's submissions in creation order.
func (l *Ledger) Submissions(marketID uint64) ([]domain.Submission, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.markets[marketID]; !ok {
		return nil, fmt.Errorf("ledger: submissions: market %d: %w", marketID, domain.ErrUnknownMarket)
	}
	ids := l.marketSubs[marketID]
	subs := make([]domain.Submission, 0, len(ids))
	for _, id := range ids {
		subs = append(subs, *l.submissions[id])
	}
	return subs, nil
}

// Bets returns snapshots of a submission's bets in placement order.
func (l *Ledger) Bets(submissionID uint64) ([]domain.Bet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.submissions[submissionID]; !ok {
		return nil, fmt.Errorf("ledger: bets: submission %d: %w", submissionID, domain.ErrUnknownSubmission)
	}
	ids := l.subBets[submissionID]
	bets := make([]domain.Bet, 0, len(ids))
	for _, id := range ids {
		bets = append(bets, *l.bets[id])
	}
	return bets, nil
}

// Markets returns snapshots of all markets in creation order, newest last.
func (l *Ledger) Markets(opts domain.ListOpts) []domain.Market {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Market, 0)
	for id := uint64(1); id <= l.nextMarketID; id++ {
		if m, ok := l.markets[id]; ok {
			out = append(out, *m)
		}
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out
}

// FinalizeResolution marks a market Resolved and records the winner and the
// per-submission distances computed at resolution. Called exactly once per
// market by the resolution engine, which holds the settlement mutex.
func (l *Ledger) FinalizeResolution(marketID, winnerID uint64, fee uint64, distances map[uint64]int, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.markets[marketID]
	if !ok {
		return fmt.Errorf("ledger: finalize: market %d: %w", marketID, domain.ErrUnknownMarket)
	}
	if m.Status.Terminal() {
		return fmt.Errorf("ledger: finalize: market %d: %w", marketID, domain.ErrAlreadyResolved)
	}

	for subID, d := range distances {
		sub := l.submissions[subID]
		sub.Distance = d
		sub.Winner = subID == winnerID
	}
	m.Status = domain.MarketStatusResolved
	m.WinnerID = winnerID
	m.Fee = fee
	resolvedAt := now
	m.ResolvedAt = &resolvedAt
	return nil
}

// MarkCancelled transitions a market to the Cancelled terminal state. Valid
// only from Open or Closed.
func (l *Ledger) MarkCancelled(marketID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.markets[marketID]
	if !ok {
		return fmt.Errorf("ledger: cancel: market %d: %w", marketID, domain.ErrUnknownMarket)
	}
	if m.Status.Terminal() {
		return fmt.Errorf("ledger: cancel: market %d: %w", marketID, domain.ErrAlreadyResolved)
	}
	m.Status = domain.MarketStatusCancelled
	return nil
}
