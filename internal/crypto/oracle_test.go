package crypto

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestSignAndRecoverResolution(t *testing.T) {
	signer, err := NewOracleSigner(testKey)
	require.NoError(t, err)

	evidence := common.HexToHash("0x1234")
	sig, err := signer.SignResolution(42, "Mars is amazing", evidence)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	recovered, err := RecoverResolver(42, "Mars is amazing", evidence, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), recovered)
}

func TestRecoverTamperedPayload(t *testing.T) {
	signer, err := NewOracleSigner("0x" + testKey)
	require.NoError(t, err)

	evidence := common.HexToHash("0x1234")
	sig, err := signer.SignResolution(42, "Mars is amazing", evidence)
	require.NoError(t, err)

	// Any change to the signed fields recovers a different address.
	recovered, err := RecoverResolver(43, "Mars is amazing", evidence, sig)
	require.NoError(t, err)
	assert.NotEqual(t, signer.Address(), recovered)

	recovered, err = RecoverResolver(42, "Mars is not amazing", evidence, sig)
	require.NoError(t, err)
	assert.NotEqual(t, signer.Address(), recovered)
}

func TestResolverSet(t *testing.T) {
	signer, err := NewOracleSigner(testKey)
	require.NoError(t, err)

	set := NewResolverSet([]string{signer.Address().Hex()})
	assert.True(t, set.IsAuthorizedResolver(signer.Address()))
	assert.False(t, set.IsAuthorizedResolver(common.HexToAddress("0x01")))
}

func TestKeystoreRoundTrip(t *testing.T) {
	blob, err := EncryptOracleKey(testKey, "hunter2")
	require.NoError(t, err)

	key, err := DecryptOracleKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKey, key)

	_, err = DecryptOracleKey(blob, "wrong")
	assert.Error(t, err)
}
