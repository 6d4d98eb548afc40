package notify

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

func TestFormatAlertResolved(t *testing.T) {
	env := domain.NewEnvelope(domain.EventMarketResolved, domain.MarketResolvedEvent{
		MarketID: 4, WinnerID: 9, Distance: 3, Volume: 1200, Fee: 60,
	})

	title, message, ok := formatAlert(env)
	assert.True(t, ok)
	assert.Equal(t, "Market resolved", title)
	assert.Equal(t, "market 4: submission 9 won at distance 3 (volume 1200, fee 60)", message)
}

func TestFormatAlertRefund(t *testing.T) {
	env := domain.NewEnvelope(domain.EventMarketResolved, domain.MarketResolvedEvent{
		MarketID: 4, Refund: true, Volume: 500,
	})

	title, message, ok := formatAlert(env)
	assert.True(t, ok)
	assert.Equal(t, "Market refunded", title)
	assert.Contains(t, message, "stakes refunded")
}

func TestFormatAlertCancelled(t *testing.T) {
	env := domain.NewEnvelope(domain.EventMarketCancelled, domain.MarketCancelledEvent{
		MarketID: 11, Refunded: 250,
	})

	title, message, ok := formatAlert(env)
	assert.True(t, ok)
	assert.Equal(t, "Market cancelled", title)
	assert.Equal(t, "market 11 cancelled; 250 refunded", message)
}

func TestFormatAlertWithdrawal(t *testing.T) {
	account := common.HexToAddress("0x3333333333333333333333333333333333333333")
	env := domain.NewEnvelope(domain.EventWithdrawal, domain.WithdrawalEvent{
		Account: account, Amount: 77,
	})

	title, message, ok := formatAlert(env)
	assert.True(t, ok)
	assert.Equal(t, "Withdrawal completed", title)
	assert.Contains(t, message, account.Hex())
}

func TestFormatAlertIgnoresUnknownEvents(t *testing.T) {
	env := domain.NewEnvelope(domain.EventBetPlaced, domain.BetPlacedEvent{MarketID: 1})

	_, _, ok := formatAlert(env)
	assert.False(t, ok)
}
