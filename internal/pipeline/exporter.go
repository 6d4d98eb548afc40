package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// Exporter periodically writes a digest of recent settlements to object
// storage so dashboards and audits can read cold data without touching the
// database.
type Exporter struct {
	settlements SettlementSource
	writer      ReportWriter
	window      time.Duration
	logger      *slog.Logger
}

// DigestEntry is one settlement row of a digest document.
type DigestEntry struct {
	MarketID   uint64    `json:"market_id"`
	WinnerID   uint64    `json:"winner_id"`
	Volume     uint64    `json:"volume"`
	Fee        uint64    `json:"fee"`
	Refund     bool      `json:"refund"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Digest is the periodic settlement summary document.
type Digest struct {
	From        time.Time     `json:"from"`
	Until       time.Time     `json:"until"`
	Count       int           `json:"count"`
	TotalVolume uint64        `json:"total_volume"`
	TotalFees   uint64        `json:"total_fees"`
	Settlements []DigestEntry `json:"settlements"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// NewExporter creates an Exporter that digests settlements resolved within
// the trailing window on each run.
func NewExporter(settlements SettlementSource, writer ReportWriter, window time.Duration, logger *slog.Logger) *Exporter {
	return &Exporter{
		settlements: settlements,
		writer:      writer,
		window:      window,
		logger:      logger,
	}
}

// Run executes a single export: list settlements resolved within the window
// ending at now and upload one digest document.
func (e *Exporter) Run(ctx context.Context, now time.Time) error {
	from := now.Add(-e.window)
	rows, err := e.settlements.ListSettlements(ctx, domain.ListOpts{
		Since: &from,
		Until: &now,
	})
	if err != nil {
		return fmt.Errorf("pipeline: list settlements since %v: %w", from, err)
	}

	digest := Digest{
		From:        from,
		Until:       now,
		Count:       len(rows),
		Settlements: make([]DigestEntry, 0, len(rows)),
		GeneratedAt: time.Now().UTC(),
	}
	for _, s := range rows {
		digest.TotalVolume += s.Volume
		digest.TotalFees += s.Fee
		digest.Settlements = append(digest.Settlements, DigestEntry{
			MarketID:   s.MarketID,
			WinnerID:   s.WinnerID,
			Volume:     s.Volume,
			Fee:        s.Fee,
			Refund:     s.Refund,
			ResolvedAt: s.ResolvedAt,
		})
	}

	path := digestPath(now)
	if err := e.writer.PutJSON(ctx, path, digest); err != nil {
		return fmt.Errorf("pipeline: upload digest %s: %w", path, err)
	}

	e.logger.InfoContext(ctx, "pipeline: settlement digest uploaded",
		slog.String("path", path),
		slog.Int("count", digest.Count),
		slog.Uint64("total_volume", digest.TotalVolume),
	)
	return nil
}

// RunLoop runs an export on every interval tick until the context is
// cancelled. Individual export failures are logged and retried on the next
// tick.
func (e *Exporter) RunLoop(ctx context.Context, interval time.Duration) error {
	e.logger.InfoContext(ctx, "pipeline: exporter started",
		slog.Duration("interval", interval),
		slog.Duration("window", e.window),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.InfoContext(ctx, "pipeline: exporter stopped")
			return ctx.Err()
		case now := <-ticker.C:
			if err := e.Run(ctx, now.UTC()); err != nil {
				e.logger.ErrorContext(ctx, "pipeline: export failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func digestPath(now time.Time) string {
	return fmt.Sprintf("reports/digests/%s.json", now.UTC().Format("2006-01-02T15-04"))
}
