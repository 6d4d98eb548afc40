package payout

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

// fakeTransferer records transfers and can be told to fail. onTransfer, when
// set, runs before the failure check to simulate work landing mid-transfer.
type fakeTransferer struct {
	fail       bool
	transfers  []uint64
	onTransfer func()
}

func (f *fakeTransferer) Transfer(_ context.Context, _ common.Address, amount uint64) error {
	if f.onTransfer != nil {
		f.onTransfer()
	}
	if f.fail {
		return errors.New("rpc unavailable")
	}
	f.transfers = append(f.transfers, amount)
	return nil
}

func TestCredit(t *testing.T) {
	l := New(&fakeTransferer{})

	require.NoError(t, l.Credit(alice, 100))
	require.NoError(t, l.Credit(alice, 50))
	assert.Equal(t, uint64(150), l.Balance(alice))
	assert.Equal(t, uint64(0), l.Balance(bob))
}

func TestCreditOverflow(t *testing.T) {
	l := New(&fakeTransferer{})

	require.NoError(t, l.Credit(alice, math.MaxUint64))
	assert.ErrorIs(t, l.Credit(alice, 1), domain.ErrBalanceOverflow)
	assert.Equal(t, uint64(math.MaxUint64), l.Balance(alice))
}

func TestCreditAllAtomic(t *testing.T) {
	l := New(&fakeTransferer{})
	require.NoError(t, l.Credit(bob, math.MaxUint64))

	err := l.CreditAll(map[common.Address]uint64{
		alice: 10,
		bob:   1, // would overflow
	})
	assert.ErrorIs(t, err, domain.ErrBalanceOverflow)

	// No partial credit reached alice.
	assert.Equal(t, uint64(0), l.Balance(alice))
	assert.Equal(t, uint64(math.MaxUint64), l.Balance(bob))
}

func TestWithdraw(t *testing.T) {
	ft := &fakeTransferer{}
	l := New(ft)
	require.NoError(t, l.Credit(alice, 250))

	amount, err := l.Withdraw(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), amount)
	assert.Equal(t, uint64(0), l.Balance(alice))
	assert.Equal(t, []uint64{250}, ft.transfers)

	// A second immediate withdraw has nothing to take.
	_, err = l.Withdraw(context.Background(), alice)
	assert.ErrorIs(t, err, domain.ErrNothingToWithdraw)
}

func TestWithdrawEmpty(t *testing.T) {
	l := New(&fakeTransferer{})
	_, err := l.Withdraw(context.Background(), bob)
	assert.ErrorIs(t, err, domain.ErrNothingToWithdraw)
}

func TestWithdrawTransferFailureRestoresBalance(t *testing.T) {
	ft := &fakeTransferer{fail: true}
	l := New(ft)
	require.NoError(t, l.Credit(alice, 99))
	require.NoError(t, l.Credit(bob, 7))

	_, err := l.Withdraw(context.Background(), alice)
	assert.ErrorIs(t, err, domain.ErrTransferFailed)

	// All-or-nothing: alice's balance is restored, bob's untouched.
	assert.Equal(t, uint64(99), l.Balance(alice))
	assert.Equal(t, uint64(7), l.Balance(bob))

	ft.fail = false
	amount, err := l.Withdraw(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), amount)
}

func TestWithdrawRestoreCapsAtCeiling(t *testing.T) {
	ft := &fakeTransferer{fail: true}
	l := New(ft)
	require.NoError(t, l.Credit(alice, 99))

	// A credit lands while the transfer is in flight and fills the balance to
	// the ceiling; restoring the debited 99 on top must not wrap.
	ft.onTransfer = func() {
		require.NoError(t, l.Credit(alice, math.MaxUint64))
	}

	_, err := l.Withdraw(context.Background(), alice)
	assert.ErrorIs(t, err, domain.ErrTransferFailed)
	assert.Equal(t, uint64(math.MaxUint64), l.Balance(alice))
}
