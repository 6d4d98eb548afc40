package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/ledger"
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type memCache struct {
	mu          sync.Mutex
	markets     map[uint64]domain.Market
	invalidated []uint64
}

func newMemCache() *memCache {
	return &memCache{markets: make(map[uint64]domain.Market)}
}

func (c *memCache) Get(_ context.Context, id uint64) (domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *memCache) Set(_ context.Context, m domain.Market) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markets[m.ID] = m
	return nil
}

func (c *memCache) Invalidate(_ context.Context, id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.markets, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

type memBus struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newMemBus() *memBus {
	return &memBus{messages: make(map[string][][]byte)}
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[channel] = append(b.messages[channel], payload)
	return nil
}

func (b *memBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

// events decodes the envelopes published on channel and returns their event
// names.
func (b *memBus) events(t *testing.T, channel string) []string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	var names []string
	for _, raw := range b.messages[channel] {
		var env domain.EventEnvelope
		require.NoError(t, json.Unmarshal(raw, &env))
		names = append(names, env.Event)
	}
	return names
}

type memJournal struct {
	mu      sync.Mutex
	entries []domain.JournalEntry
}

func (j *memJournal) Append(_ context.Context, event string, detail map[string]any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, domain.JournalEntry{Event: event, Detail: detail})
	return nil
}

func (j *memJournal) List(_ context.Context, _ domain.ListOpts) ([]domain.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]domain.JournalEntry(nil), j.entries...), nil
}

type svcFixture struct {
	svc     *MarketService
	cache   *memCache
	bus     *memBus
	journal *memJournal
}

func newSvcFixture(t *testing.T) *svcFixture {
	t.Helper()
	cache := newMemCache()
	bus := newMemBus()
	journal := &memJournal{}
	logger := slog.New(slog.DiscardHandler)

	markets := ledger.New(ledger.Config{MinStake: 1, CutoffWindow: time.Hour})
	emitter := NewEmitter(bus, journal, logger)
	return &svcFixture{
		svc:     NewMarketService(markets, cache, emitter, logger),
		cache:   cache,
		bus:     bus,
		journal: journal,
	}
}

func TestOpenMarketEmitsEvent(t *testing.T) {
	f := newSvcFixture(t)

	m, err := f.svc.OpenMarket(context.Background(), alice, "headline tomorrow", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.ID)
	assert.Equal(t, alice, m.Creator)

	assert.Equal(t, []string{domain.EventMarketOpened}, f.bus.events(t, domain.ChannelMarkets))
	require.Len(t, f.journal.entries, 1)
	assert.Equal(t, domain.EventMarketOpened, f.journal.entries[0].Event)
}

func TestSubmitInvalidatesCache(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	m, err := f.svc.OpenMarket(ctx, alice, "subject", 24*time.Hour)
	require.NoError(t, err)

	// Warm the cache, then write through the service.
	_, err = f.svc.GetMarket(ctx, m.ID)
	require.NoError(t, err)

	sub, err := f.svc.Submit(ctx, m.ID, bob, "a prediction", 100)
	require.NoError(t, err)
	assert.Equal(t, m.ID, sub.MarketID)
	assert.Contains(t, f.cache.invalidated, m.ID)

	assert.Equal(t,
		[]string{domain.EventMarketOpened, domain.EventSubmissionCreated},
		f.bus.events(t, domain.ChannelMarkets),
	)
}

func TestPlaceBetPublishesOnBetsChannel(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	m, err := f.svc.OpenMarket(ctx, alice, "subject", 24*time.Hour)
	require.NoError(t, err)
	sub, err := f.svc.Submit(ctx, m.ID, alice, "text", 50)
	require.NoError(t, err)

	bet, err := f.svc.PlaceBet(ctx, sub.ID, bob, 25)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, bet.SubmissionID)
	assert.Equal(t, bob, bet.Bettor)

	assert.Equal(t, []string{domain.EventBetPlaced}, f.bus.events(t, domain.ChannelBets))

	fresh, err := f.svc.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(75), fresh.Volume)
}

func TestGetMarketBackfillsCache(t *testing.T) {
	f := newSvcFixture(t)
	ctx := context.Background()

	m, err := f.svc.OpenMarket(ctx, alice, "subject", 24*time.Hour)
	require.NoError(t, err)
	f.cache.Invalidate(ctx, m.ID)

	got, err := f.svc.GetMarket(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	cached, err := f.cache.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, cached.ID)
}

func TestGetMarketUnknown(t *testing.T) {
	f := newSvcFixture(t)

	_, err := f.svc.GetMarket(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrUnknownMarket)
}
