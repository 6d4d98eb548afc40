package engine

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/ledger"
	"github.com/alanyoungcy/marketengine/internal/payout"
	"github.com/alanyoungcy/marketengine/internal/registry"
)

var (
	oracle   = common.HexToAddress("0x0000000000000000000000000000000000000071")
	intruder = common.HexToAddress("0x0000000000000000000000000000000000000072")
	sub1er   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	sub2er   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	backer   = common.HexToAddress("0x0000000000000000000000000000000000000003")

	evidence = common.HexToHash("0xdeadbeef")
)

type allowList map[common.Address]bool

func (a allowList) IsAuthorizedResolver(addr common.Address) bool { return a[addr] }

type fixture struct {
	markets *ledger.Ledger
	payouts *payout.Ledger
	reg     *registry.Registry
	fees    *FeeEngine
	engine  *ResolutionEngine
	open    time.Time
	end     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	open := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	markets := ledger.New(ledger.Config{MinStake: 1, CutoffWindow: time.Hour})
	payouts := payout.New(nullTransferer{})
	reg := registry.New(100, 100)
	require.NoError(t, reg.Mint(holderX, 60))

	fees, err := NewFeeEngine(testTable(), reg, payouts, reserve)
	require.NoError(t, err)

	eng := NewResolutionEngine(markets, payouts, fees, allowList{oracle: true}, reserve)
	return &fixture{
		markets: markets,
		payouts: payouts,
		reg:     reg,
		fees:    fees,
		engine:  eng,
		open:    open,
		end:     open.Add(24 * time.Hour),
	}
}

// openMarket opens a 24h market and returns its id.
func (f *fixture) openMarket(t *testing.T) uint64 {
	t.Helper()
	id, err := f.markets.OpenMarket(sub1er, "what will the announcement say", f.open, 24*time.Hour)
	require.NoError(t, err)
	return id
}

func TestResolveScenario(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t)

	s1, err := f.markets.Submit(id, sub1er, "Mars is amazing", 1000, f.open)
	require.NoError(t, err)
	_, err = f.markets.Submit(id, sub2er, "Going to the moon", 500, f.open)
	require.NoError(t, err)
	_, err = f.markets.Bet(s1, backer, 300, f.open)
	require.NoError(t, err)

	settlement, feeDist, err := f.engine.Resolve(id, "Mars is amazing", evidence, oracle, f.end)
	require.NoError(t, err)
	require.NotNil(t, feeDist)

	assert.Equal(t, s1, settlement.WinnerID)
	assert.Equal(t, 0, settlement.Distance)
	assert.Equal(t, uint64(1800), settlement.Volume)

	// fee = 1800 * 500 / 10000 = 90, pot = 1710 split over stake 1000 + bet 300.
	assert.Equal(t, uint64(90), settlement.Fee)
	wantCreator := uint64(1710 * 1000 / 1300)
	wantBacker := uint64(1710 * 300 / 1300)
	assert.Equal(t, wantCreator, f.payouts.Balance(sub1er))
	assert.Equal(t, wantBacker, f.payouts.Balance(backer))

	// The losing submission forfeits; its creator gets nothing.
	assert.Equal(t, uint64(0), f.payouts.Balance(sub2er))

	// Conservation: fee + winner payouts (dust included) == volume.
	var paid uint64
	for _, p := range settlement.Payouts {
		paid += p.Amount
	}
	assert.Equal(t, settlement.Volume, settlement.Fee+paid)

	m, _ := f.markets.Market(id)
	assert.Equal(t, domain.MarketStatusResolved, m.Status)
	assert.Equal(t, s1, m.WinnerID)
	assert.Equal(t, uint64(90), m.Fee)

	sub, _ := f.markets.Submission(s1)
	assert.True(t, sub.Winner)
	assert.Equal(t, 0, sub.Distance)
}

func TestResolveTieBreaksToLowestID(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t)

	// Both texts are distance 1 from the observed outcome.
	s1, err := f.markets.Submit(id, sub1er, "bat", 100, f.open)
	require.NoError(t, err)
	_, err = f.markets.Submit(id, sub2er, "car", 100, f.open)
	require.NoError(t, err)

	settlement, _, err := f.engine.Resolve(id, "cat", evidence, oracle, f.end)
	require.NoError(t, err)
	assert.Equal(t, s1, settlement.WinnerID)
	assert.Equal(t, 1, settlement.Distance)
}

func TestResolveSingleSubmissionRefunds(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t)

	s1, err := f.markets.Submit(id, sub1er, "only entry", 777, f.open)
	require.NoError(t, err)
	_, err = f.markets.Bet(s1, backer, 223, f.open)
	require.NoError(t, err)

	settlement, feeDist, err := f.engine.Resolve(id, "whatever happened", evidence, oracle, f.end)
	require.NoError(t, err)
	assert.Nil(t, feeDist)

	// Exact refunds, zero fee.
	assert.True(t, settlement.Refund)
	assert.Equal(t, uint64(0), settlement.Fee)
	assert.Equal(t, uint64(777), f.payouts.Balance(sub1er))
	assert.Equal(t, uint64(223), f.payouts.Balance(backer))
	assert.Equal(t, uint64(0), f.payouts.Balance(reserve))

	m, _ := f.markets.Market(id)
	assert.Equal(t, domain.MarketStatusResolved, m.Status)
	assert.Equal(t, uint64(0), m.Fee)
}

func TestResolveNoSubmissions(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t)

	settlement, feeDist, err := f.engine.Resolve(id, "observed", evidence, oracle, f.end)
	require.NoError(t, err)
	assert.Nil(t, feeDist)
	assert.True(t, settlement.Refund)
	assert.Empty(t, settlement.Payouts)

	m, _ := f.markets.Market(id)
	assert.Equal(t, domain.MarketStatusResolved, m.Status)
}

func TestResolveAuthorization(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t)

	_, _, err := f.engine.Resolve(id, "observed", evidence, intruder, f.end)
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)
}

func TestResolveBeforeEndTime(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t)

	_, _, err := f.engine.Resolve(id, "observed", evidence, oracle, f.end.Add(-time.Second))
	assert.ErrorIs(t, err, domain.ErrMarketStillOpen)
}

func TestResolveTwiceFails(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t)
	_, err := f.markets.Submit(id, sub1er, "a", 100, f.open)
	require.NoError(t, err)
	_, err = f.markets.Submit(id, sub2er, "b", 100, f.open)
	require.NoError(t, err)

	_, _, err = f.engine.Resolve(id, "a", evidence, oracle, f.end)
	require.NoError(t, err)

	balBefore := f.payouts.Balance(sub1er)
	reserveBefore := f.payouts.Balance(reserve)

	_, _, err = f.engine.Resolve(id, "a", evidence, oracle, f.end)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)

	// No additional credits from the rejected second call.
	assert.Equal(t, balBefore, f.payouts.Balance(sub1er))
	assert.Equal(t, reserveBefore, f.payouts.Balance(reserve))
}

func TestResolveConservationProperty(t *testing.T) {
	// Awkward volumes that exercise floor-division dust.
	cases := []struct {
		stakes []uint64
		bets   []uint64 // all on the first submission
	}{
		{stakes: []uint64{3, 7}, bets: nil},
		{stakes: []uint64{1000, 500, 250}, bets: []uint64{333}},
		{stakes: []uint64{17, 19, 23, 29}, bets: []uint64{31, 37, 41}},
		{stakes: []uint64{999_983, 2}, bets: []uint64{1}},
	}

	for i, tc := range cases {
		f := newFixture(t)
		id := f.openMarket(t)

		first := uint64(0)
		for j, stake := range tc.stakes {
			sid, err := f.markets.Submit(id, common.BytesToAddress([]byte{byte(10 + j)}), "text", stake, f.open)
			require.NoError(t, err)
			if j == 0 {
				first = sid
			}
		}
		for j, amount := range tc.bets {
			_, err := f.markets.Bet(first, common.BytesToAddress([]byte{byte(100 + j)}), amount, f.open)
			require.NoError(t, err)
		}

		m, _ := f.markets.Market(id)
		settlement, _, err := f.engine.Resolve(id, "text", evidence, oracle, f.end)
		require.NoError(t, err, "case %d", i)

		var paid uint64
		for _, p := range settlement.Payouts {
			paid += p.Amount
		}
		assert.Equal(t, m.Volume, settlement.Fee+paid, "case %d not conserved", i)
	}
}

func TestResolveObservedTextTooLong(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t)

	long := make([]rune, domain.MaxTextLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, _, err := f.engine.Resolve(id, string(long), evidence, oracle, f.end)
	assert.ErrorIs(t, err, domain.ErrTextTooLong)
}

func TestCancelRefundsEveryone(t *testing.T) {
	f := newFixture(t)
	id := f.openMarket(t)

	s1, err := f.markets.Submit(id, sub1er, "a", 400, f.open)
	require.NoError(t, err)
	_, err = f.markets.Submit(id, sub2er, "b", 600, f.open)
	require.NoError(t, err)
	_, err = f.markets.Bet(s1, backer, 250, f.open)
	require.NoError(t, err)

	settlement, err := f.engine.Cancel(id, f.open.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, settlement.Refund)

	assert.Equal(t, uint64(400), f.payouts.Balance(sub1er))
	assert.Equal(t, uint64(600), f.payouts.Balance(sub2er))
	assert.Equal(t, uint64(250), f.payouts.Balance(backer))
	assert.Equal(t, uint64(0), f.payouts.Balance(reserve))

	m, _ := f.markets.Market(id)
	assert.Equal(t, domain.MarketStatusCancelled, m.Status)

	// Cancelled is terminal for both cancel and resolve.
	_, err = f.engine.Cancel(id, f.end)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
	_, _, err = f.engine.Resolve(id, "a", evidence, oracle, f.end)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
}
