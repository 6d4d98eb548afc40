package domain

import (
	"context"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// SignalBus publishes engine events to interested consumers (WebSocket hub,
// report pipeline, external dashboards).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// JournalEntry is one row of the durable event journal.
type JournalEntry struct {
	ID        string
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// JournalStore appends engine events to a durable, queryable journal.
type JournalStore interface {
	Append(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]JournalEntry, error)
}

// SettlementStore archives the outcome of every resolved or cancelled market
// and every fee distribution for later inspection and replay.
type SettlementStore interface {
	InsertSettlement(ctx context.Context, s Settlement) error
	GetSettlement(ctx context.Context, marketID uint64) (Settlement, error)
	ListSettlements(ctx context.Context, opts ListOpts) ([]Settlement, error)
	InsertDistribution(ctx context.Context, d FeeDistribution) error
	ListDistributions(ctx context.Context, opts ListOpts) ([]FeeDistribution, error)
}

// TransferStore records completed withdrawal transfers.
type TransferStore interface {
	Insert(ctx context.Context, rec TransferRecord) error
	ListByAccount(ctx context.Context, account common.Address, opts ListOpts) ([]TransferRecord, error)
}

// MarketCache is a read-through cache for market snapshots serving the HTTP
// read surface. Cache failures are never fatal; callers fall back to the
// ledger.
type MarketCache interface {
	Get(ctx context.Context, id uint64) (Market, error)
	Set(ctx context.Context, m Market) error
	Invalidate(ctx context.Context, id uint64) error
}

// RateLimiter provides distributed rate limiting for the write endpoints.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// BlobWriter uploads settlement reports to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
