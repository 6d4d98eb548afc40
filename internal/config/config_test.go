package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Fees.ReserveAccount = "0x00000000000000000000000000000000000000ff"
	cfg.Fees.Pools = []PoolConfig{
		{Name: "validators", Bps: 360, Recipient: "0x0000000000000000000000000000000000000010"},
		{Name: "holders", Bps: 140, TokenPool: true},
	}
	cfg.Oracle.Resolvers = []string{"0x0000000000000000000000000000000000000071"}
	return cfg
}

func TestValidateOK(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateShareTableSum(t *testing.T) {
	cfg := validConfig()
	cfg.Fees.Pools[0].Bps = 300 // sums to 440, want 500

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool weights sum to 440")
}

func TestValidateTokenPoolRecipient(t *testing.T) {
	cfg := validConfig()
	cfg.Fees.Pools[1].Recipient = "0x01"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not name a recipient")
}

func TestValidateMissingResolvers(t *testing.T) {
	cfg := validConfig()
	cfg.Oracle.Resolvers = nil

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolver")
}

func TestValidateTokenBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Token.BatchLimit = cfg.Token.MaxSupply + 1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_limit")
}
