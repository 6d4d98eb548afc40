package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

type fakeSource struct {
	settlements map[uint64]domain.Settlement
	listed      []domain.Settlement
	listOpts    domain.ListOpts
}

func (f *fakeSource) GetSettlement(_ context.Context, marketID uint64) (domain.Settlement, error) {
	s, ok := f.settlements[marketID]
	if !ok {
		return domain.Settlement{}, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeSource) ListSettlements(_ context.Context, opts domain.ListOpts) ([]domain.Settlement, error) {
	f.listOpts = opts
	return f.listed, nil
}

type fakeWriter struct {
	paths []string
	docs  []any
}

func (f *fakeWriter) PutJSON(_ context.Context, path string, v any) error {
	f.paths = append(f.paths, path)
	f.docs = append(f.docs, v)
	return nil
}

func envelope(t *testing.T, event string, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(domain.NewEnvelope(event, payload))
	require.NoError(t, err)
	return raw
}

func TestReporterUploadsSettlementReport(t *testing.T) {
	oracle := common.HexToAddress("0xabcdabcdabcdabcdabcdabcdabcdabcdabcdabcd")
	src := &fakeSource{settlements: map[uint64]domain.Settlement{
		7: {
			MarketID:     7,
			WinnerID:     3,
			Distance:     2,
			ObservedText: "observed",
			Oracle:       oracle,
			Volume:       1000,
			Fee:          50,
			ResolvedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		},
	}}
	w := &fakeWriter{}
	r := NewReporter(nil, src, w, slog.New(slog.DiscardHandler))

	raw := envelope(t, domain.EventMarketResolved, domain.MarketResolvedEvent{MarketID: 7, WinnerID: 3})
	require.NoError(t, r.handle(context.Background(), raw))

	require.Equal(t, []string{"reports/settlements/7.json"}, w.paths)
	report, ok := w.docs[0].(SettlementReport)
	require.True(t, ok)
	assert.Equal(t, uint64(7), report.MarketID)
	assert.Equal(t, uint64(3), report.WinnerID)
	assert.Equal(t, oracle, report.Oracle)
	assert.Equal(t, uint64(1000), report.Volume)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestReporterSkipsCancellations(t *testing.T) {
	src := &fakeSource{settlements: map[uint64]domain.Settlement{}}
	w := &fakeWriter{}
	r := NewReporter(nil, src, w, slog.New(slog.DiscardHandler))

	raw := envelope(t, domain.EventMarketCancelled, domain.MarketCancelledEvent{MarketID: 9})
	require.NoError(t, r.handle(context.Background(), raw))
	assert.Empty(t, w.paths)
}

func TestReporterMissingSettlement(t *testing.T) {
	src := &fakeSource{settlements: map[uint64]domain.Settlement{}}
	w := &fakeWriter{}
	r := NewReporter(nil, src, w, slog.New(slog.DiscardHandler))

	raw := envelope(t, domain.EventMarketResolved, domain.MarketResolvedEvent{MarketID: 42})
	err := r.handle(context.Background(), raw)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, w.paths)
}

func TestExporterDigest(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	src := &fakeSource{listed: []domain.Settlement{
		{MarketID: 1, WinnerID: 2, Volume: 500, Fee: 25, ResolvedAt: now.Add(-time.Hour)},
		{MarketID: 2, Refund: true, Volume: 300, ResolvedAt: now.Add(-2 * time.Hour)},
	}}
	w := &fakeWriter{}
	e := NewExporter(src, w, 24*time.Hour, slog.New(slog.DiscardHandler))

	require.NoError(t, e.Run(context.Background(), now))

	require.NotNil(t, src.listOpts.Since)
	assert.Equal(t, now.Add(-24*time.Hour), *src.listOpts.Since)

	require.Equal(t, []string{"reports/digests/2026-08-29T10-30.json"}, w.paths)
	digest, ok := w.docs[0].(Digest)
	require.True(t, ok)
	assert.Equal(t, 2, digest.Count)
	assert.Equal(t, uint64(800), digest.TotalVolume)
	assert.Equal(t, uint64(25), digest.TotalFees)
	assert.True(t, digest.Settlements[1].Refund)
}
