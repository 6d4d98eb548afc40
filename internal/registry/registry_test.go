package registry

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func TestMint(t *testing.T) {
	r := New(100, 50)

	require.NoError(t, r.Mint(alice, 3))
	assert.Equal(t, uint64(3), r.BalanceOf(alice))
	assert.Equal(t, uint64(3), r.TotalMinted())
	assert.Equal(t, alice, r.OwnerOf(1))
	assert.Equal(t, alice, r.OwnerOf(3))
	assert.Equal(t, common.Address{}, r.OwnerOf(4))
}

func TestMintValidation(t *testing.T) {
	r := New(100, 10)

	assert.ErrorIs(t, r.Mint(common.Address{}, 1), domain.ErrZeroAddress)
	assert.ErrorIs(t, r.Mint(alice, 0), domain.ErrEmptyBatch)
	assert.ErrorIs(t, r.Mint(alice, 11), domain.ErrBatchTooLarge)
	assert.Equal(t, uint64(0), r.TotalMinted())
}

func TestMintSupplyExceeded(t *testing.T) {
	r := New(5, 10)

	require.NoError(t, r.Mint(alice, 4))
	assert.ErrorIs(t, r.Mint(bob, 2), domain.ErrSupplyExceeded)
	// The failed batch leaves no partial state.
	assert.Equal(t, uint64(4), r.TotalMinted())
	assert.Equal(t, uint64(0), r.BalanceOf(bob))
}

func TestFinalize(t *testing.T) {
	r := New(100, 50)
	require.NoError(t, r.Mint(alice, 1))

	require.NoError(t, r.Finalize())
	assert.True(t, r.Finalized())
	assert.ErrorIs(t, r.Finalize(), domain.ErrAlreadyFinalized)
	assert.ErrorIs(t, r.Mint(bob, 1), domain.ErrAlreadyFinalized)
	assert.Equal(t, uint64(1), r.TotalMinted())
}

func TestAutoFinalizeOnExhaustion(t *testing.T) {
	r := New(3, 10)

	require.NoError(t, r.Mint(alice, 3))
	assert.True(t, r.Finalized())
	assert.ErrorIs(t, r.Mint(bob, 1), domain.ErrAlreadyFinalized)
}

func TestHoldersFirstMintOrder(t *testing.T) {
	r := New(100, 50)
	require.NoError(t, r.Mint(bob, 2))
	require.NoError(t, r.Mint(alice, 5))
	require.NoError(t, r.Mint(bob, 1))
	require.NoError(t, r.Mint(carol, 4))

	holders := r.Holders()
	require.Len(t, holders, 3)
	assert.Equal(t, domain.TokenHolder{Address: bob, Tokens: 3}, holders[0])
	assert.Equal(t, domain.TokenHolder{Address: alice, Tokens: 5}, holders[1])
	assert.Equal(t, domain.TokenHolder{Address: carol, Tokens: 4}, holders[2])
}
