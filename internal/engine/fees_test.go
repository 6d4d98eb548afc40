package engine

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/payout"
	"github.com/alanyoungcy/marketengine/internal/registry"
)

var (
	validators = common.HexToAddress("0x0000000000000000000000000000000000000010")
	operators  = common.HexToAddress("0x0000000000000000000000000000000000000020")
	creators   = common.HexToAddress("0x0000000000000000000000000000000000000030")
	builders   = common.HexToAddress("0x0000000000000000000000000000000000000040")
	aux        = common.HexToAddress("0x0000000000000000000000000000000000000050")
	reserve    = common.HexToAddress("0x00000000000000000000000000000000000000ff")

	holderX = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	holderY = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

// nullTransferer always succeeds; fee tests never withdraw.
type nullTransferer struct{}

func (nullTransferer) Transfer(context.Context, common.Address, uint64) error { return nil }

// testTable mirrors the deployed schedule: 500 bps total, of which 140 bps
// (the "holders" pool) is split across ownership-token holders.
func testTable() domain.ShareTable {
	return domain.ShareTable{
		TotalFeeBps: 500,
		Pools: []domain.Pool{
			{Name: "validators", Bps: 150, Recipient: validators},
			{Name: "operators", Bps: 100, Recipient: operators},
			{Name: "creators", Bps: 60, Recipient: creators},
			{Name: "builder-pool", Bps: 30, Recipient: builders},
			{Name: "auxiliary-pool", Bps: 20, Recipient: aux},
			{Name: "holders", Bps: 140, TokenPool: true},
		},
	}
}

func newFeeEngine(t *testing.T, reg *registry.Registry) (*FeeEngine, *payout.Ledger) {
	t.Helper()
	payouts := payout.New(nullTransferer{})
	fe, err := NewFeeEngine(testTable(), reg, payouts, reserve)
	require.NoError(t, err)
	return fe, payouts
}

func TestNewFeeEngineSumMismatch(t *testing.T) {
	table := testTable()
	table.TotalFeeBps = 400

	_, err := NewFeeEngine(table, registry.New(100, 50), payout.New(nullTransferer{}), reserve)
	assert.ErrorIs(t, err, domain.ErrSumMismatch)
}

func TestDistributeConservation(t *testing.T) {
	reg := registry.New(100, 50)
	require.NoError(t, reg.Mint(holderX, 60))
	require.NoError(t, reg.Mint(holderY, 13))
	fe, _ := newFeeEngine(t, reg)

	for _, fee := range []uint64{0, 1, 7, 99, 100, 9999, 10000, 123_456_789} {
		dist, err := fe.Distribute(fee)
		require.NoError(t, err, "fee=%d", fee)

		var sum uint64
		for _, p := range dist.Pools {
			sum += p.Amount
		}
		for _, h := range dist.Holders {
			sum += h.Amount
		}
		assert.Equal(t, fee, sum+dist.Dust, "fee=%d not conserved", fee)
	}
}

func TestDistributePoolFloors(t *testing.T) {
	reg := registry.New(100, 50)
	require.NoError(t, reg.Mint(holderX, 60))
	fe, payouts := newFeeEngine(t, reg)

	dist, err := fe.Distribute(1000)
	require.NoError(t, err)

	// pool_amount = 1000 * bps / 500.
	want := map[string]uint64{
		"validators":     300,
		"operators":      200,
		"creators":       120,
		"builder-pool":   60,
		"auxiliary-pool": 40,
	}
	require.Len(t, dist.Pools, 5)
	for _, p := range dist.Pools {
		assert.Equal(t, want[p.Name], p.Amount, p.Name)
	}
	assert.Equal(t, uint64(300), payouts.Balance(validators))

	// Token pool = 1000*140/500 = 280; holder X = floor(280*60/100) = 168.
	require.Len(t, dist.Holders, 1)
	assert.Equal(t, uint64(168), dist.Holders[0].Amount)
	assert.Equal(t, uint64(168), payouts.Balance(holderX))

	// Unminted remainder of the token pool stays with the reserve.
	assert.Equal(t, uint64(280-168), dist.Dust)
	assert.Equal(t, dist.Dust, payouts.Balance(reserve))
}

func TestDistributeProRataOverMaxSupply(t *testing.T) {
	// 100-token registry with 60 minted to X. The engine
	// divides by the fixed maximum supply, so X receives floor(P*60/100)
	// of the token pool, not all of it.
	reg := registry.New(100, 100)
	require.NoError(t, reg.Mint(holderX, 60))
	fe, payouts := newFeeEngine(t, reg)

	dist, err := fe.Distribute(50_000)
	require.NoError(t, err)

	tokenPool := uint64(50_000 * 140 / 500) // 14000
	require.Len(t, dist.Holders, 1)
	assert.Equal(t, tokenPool*60/100, dist.Holders[0].Amount)
	assert.Equal(t, tokenPool*60/100, payouts.Balance(holderX))
	assert.Less(t, payouts.Balance(holderX), tokenPool)
}

func TestDistributeHolderSumBounded(t *testing.T) {
	reg := registry.New(100, 50)
	require.NoError(t, reg.Mint(holderX, 33))
	require.NoError(t, reg.Mint(holderY, 7))
	fe, _ := newFeeEngine(t, reg)

	for _, fee := range []uint64{13, 997, 31_337} {
		dist, err := fe.Distribute(fee)
		require.NoError(t, err)

		tokenPool := mulDiv(fee, 140, 500)
		var holderSum uint64
		for _, h := range dist.Holders {
			holderSum += h.Amount
		}
		assert.LessOrEqual(t, holderSum, tokenPool, "fee=%d", fee)
	}
}

func TestDistributeZeroMinted(t *testing.T) {
	fe, payouts := newFeeEngine(t, registry.New(100, 50))

	dist, err := fe.Distribute(1000)
	require.NoError(t, err)

	// The whole 280-unit token pool accrues to the reserve; no division by
	// an empty holder set.
	assert.Empty(t, dist.Holders)
	assert.Equal(t, uint64(280), dist.Dust)
	assert.Equal(t, uint64(280), payouts.Balance(reserve))
}

func TestProjectedHolderEarningsMirrorsDistribute(t *testing.T) {
	reg := registry.New(100, 100)
	require.NoError(t, reg.Mint(holderX, 60))
	fe, payouts := newFeeEngine(t, reg)

	for _, volume := range []uint64{0, 1, 12_345, 200_000, 999_999_937} {
		projected := fe.ProjectedHolderEarnings(volume, 60)

		fee := mulDiv(volume, 500, domain.BpsDenominator)
		before := payouts.Balance(holderX)
		_, err := fe.Distribute(fee)
		require.NoError(t, err)

		assert.Equal(t, projected, payouts.Balance(holderX)-before,
			"projection diverged from live distribution at volume=%d", volume)
	}
}

func TestShareBreakdown(t *testing.T) {
	fe, _ := newFeeEngine(t, registry.New(100, 50))

	shares := fe.ShareBreakdown()
	require.Len(t, shares, 6)
	var total uint64
	for _, s := range shares {
		total += s.Bps
	}
	assert.Equal(t, uint64(500), total)
	assert.Equal(t, domain.PoolShare{Name: "validators", Bps: 150}, shares[0])
}
