package ledger

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

var (
	creator = common.HexToAddress("0x0000000000000000000000000000000000000001")
	bettor  = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newLedger() *Ledger {
	return New(Config{MinStake: 10, CutoffWindow: time.Hour})
}

func TestOpenMarket(t *testing.T) {
	l := newLedger()

	id, err := l.OpenMarket(creator, "btc price on friday", t0, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	m, err := l.Market(id)
	require.NoError(t, err)
	assert.Equal(t, domain.MarketStatusOpen, m.Status)
	assert.Equal(t, t0.Add(24*time.Hour), m.EndTime)
	assert.Equal(t, t0.Add(23*time.Hour), m.Cutoff)
	assert.Equal(t, uint64(0), m.Volume)
}

func TestOpenMarketInvalidDuration(t *testing.T) {
	l := newLedger()

	_, err := l.OpenMarket(creator, "subject", t0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)
	_, err = l.OpenMarket(creator, "subject", t0, -time.Hour)
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)
}

func TestOpenMarketShortDurationClampsCutoff(t *testing.T) {
	l := newLedger()

	// Duration shorter than the cutoff window: cutoff clamps to open time,
	// so the market never accepts entries.
	id, err := l.OpenMarket(creator, "subject", t0, 30*time.Minute)
	require.NoError(t, err)

	_, err = l.Submit(id, creator, "text", 10, t0)
	assert.ErrorIs(t, err, domain.ErrMarketClosedForEntry)
}

func TestSubmit(t *testing.T) {
	l := newLedger()
	id, _ := l.OpenMarket(creator, "subject", t0, 24*time.Hour)

	subID, err := l.Submit(id, creator, "Mars is amazing", 100, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), subID)

	m, _ := l.Market(id)
	assert.Equal(t, uint64(100), m.Volume)

	sub, err := l.Submission(subID)
	require.NoError(t, err)
	assert.Equal(t, "Mars is amazing", sub.Text)
	assert.Equal(t, uint64(100), sub.Stake)
	assert.False(t, sub.Winner)
}

func TestSubmitValidation(t *testing.T) {
	l := newLedger()
	id, _ := l.OpenMarket(creator, "subject", t0, 24*time.Hour)

	_, err := l.Submit(id, creator, strings.Repeat("x", domain.MaxTextLen+1), 100, t0)
	assert.ErrorIs(t, err, domain.ErrTextTooLong)

	_, err = l.Submit(id, creator, "ok", 9, t0)
	assert.ErrorIs(t, err, domain.ErrStakeBelowMinimum)

	_, err = l.Submit(99, creator, "ok", 100, t0)
	assert.ErrorIs(t, err, domain.ErrUnknownMarket)
}

func TestSubmitAfterCutoff(t *testing.T) {
	l := newLedger()
	id, _ := l.OpenMarket(creator, "subject", t0, 24*time.Hour)

	cutoff := t0.Add(23 * time.Hour)
	_, err := l.Submit(id, creator, "too late", 100, cutoff)
	assert.ErrorIs(t, err, domain.ErrMarketClosedForEntry)

	// One nanosecond before the cutoff is still in the window.
	_, err = l.Submit(id, creator, "just in time", 100, cutoff.Add(-time.Nanosecond))
	assert.NoError(t, err)
}

func TestBet(t *testing.T) {
	l := newLedger()
	id, _ := l.OpenMarket(creator, "subject", t0, 24*time.Hour)
	subID, _ := l.Submit(id, creator, "text", 100, t0)

	betID, err := l.Bet(subID, bettor, 40, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), betID)

	m, _ := l.Market(id)
	assert.Equal(t, uint64(140), m.Volume)

	sub, _ := l.Submission(subID)
	assert.Equal(t, uint64(40), sub.BetTotal)

	bets, err := l.Bets(subID)
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assert.Equal(t, bettor, bets[0].Bettor)
}

func TestBetValidation(t *testing.T) {
	l := newLedger()
	id, _ := l.OpenMarket(creator, "subject", t0, 24*time.Hour)
	subID, _ := l.Submit(id, creator, "text", 100, t0)

	_, err := l.Bet(77, bettor, 40, t0)
	assert.ErrorIs(t, err, domain.ErrUnknownSubmission)

	_, err = l.Bet(subID, bettor, 1, t0)
	assert.ErrorIs(t, err, domain.ErrStakeBelowMinimum)

	_, err = l.Bet(subID, bettor, 40, t0.Add(23*time.Hour))
	assert.ErrorIs(t, err, domain.ErrMarketClosedForEntry)
}

func TestVolumeAccumulationExact(t *testing.T) {
	l := newLedger()
	id, _ := l.OpenMarket(creator, "subject", t0, 24*time.Hour)

	var want uint64
	for i := uint64(0); i < 20; i++ {
		stake := 10 + i*7
		subID, err := l.Submit(id, creator, "text", stake, t0)
		require.NoError(t, err)
		want += stake

		_, err = l.Bet(subID, bettor, 11+i, t0)
		require.NoError(t, err)
		want += 11 + i
	}

	m, _ := l.Market(id)
	assert.Equal(t, want, m.Volume)
}

func TestClose(t *testing.T) {
	l := newLedger()
	id, _ := l.OpenMarket(creator, "subject", t0, 24*time.Hour)
	end := t0.Add(24 * time.Hour)

	assert.ErrorIs(t, l.Close(id, end.Add(-time.Minute)), domain.ErrMarketStillOpen)
	require.NoError(t, l.Close(id, end))

	m, _ := l.Market(id)
	assert.Equal(t, domain.MarketStatusClosed, m.Status)

	// Closing a closed market is a no-op.
	assert.NoError(t, l.Close(id, end))

	// No entries after close regardless of timestamps.
	_, err := l.Submit(id, creator, "text", 100, t0)
	assert.ErrorIs(t, err, domain.ErrMarketClosedForEntry)
}

func TestTerminalTransitions(t *testing.T) {
	l := newLedger()
	id, _ := l.OpenMarket(creator, "subject", t0, 24*time.Hour)
	subID, _ := l.Submit(id, creator, "text", 100, t0)

	require.NoError(t, l.FinalizeResolution(id, subID, 5, map[uint64]int{subID: 0}, t0.Add(25*time.Hour)))

	m, _ := l.Market(id)
	assert.Equal(t, domain.MarketStatusResolved, m.Status)
	assert.Equal(t, subID, m.WinnerID)
	assert.Equal(t, uint64(5), m.Fee)

	sub, _ := l.Submission(subID)
	assert.True(t, sub.Winner)
	assert.Equal(t, 0, sub.Distance)

	// Resolved is terminal.
	assert.ErrorIs(t, l.FinalizeResolution(id, subID, 5, nil, t0), domain.ErrAlreadyResolved)
	assert.ErrorIs(t, l.MarkCancelled(id), domain.ErrAlreadyResolved)
	assert.ErrorIs(t, l.Close(id, t0.Add(48*time.Hour)), domain.ErrAlreadyResolved)
}

func TestMarkCancelled(t *testing.T) {
	l := newLedger()
	id, _ := l.OpenMarket(creator, "subject", t0, 24*time.Hour)

	require.NoError(t, l.MarkCancelled(id))
	m, _ := l.Market(id)
	assert.Equal(t, domain.MarketStatusCancelled, m.Status)

	assert.ErrorIs(t, l.MarkCancelled(id), domain.ErrAlreadyResolved)
}

func TestMarketsPagination(t *testing.T) {
	l := newLedger()
	for i := 0; i < 5; i++ {
		_, err := l.OpenMarket(creator, "subject", t0, 24*time.Hour)
		require.NoError(t, err)
	}

	all := l.Markets(domain.ListOpts{})
	require.Len(t, all, 5)
	assert.Equal(t, uint64(1), all[0].ID)

	page := l.Markets(domain.ListOpts{Limit: 2, Offset: 3})
	require.Len(t, page, 2)
	assert.Equal(t, uint64(4), page[0].ID)

	assert.Empty(t, l.Markets(domain.ListOpts{Offset: 10}))
}
