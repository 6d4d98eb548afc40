// Package pipeline runs the background report jobs: a reporter that turns
// each resolved market into an object-storage report, and an exporter that
// writes periodic settlement digests.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// ReportWriter uploads a JSON document to object storage.
type ReportWriter interface {
	PutJSON(ctx context.Context, path string, v any) error
}

// SettlementSource reads archived settlements.
type SettlementSource interface {
	GetSettlement(ctx context.Context, marketID uint64) (domain.Settlement, error)
	ListSettlements(ctx context.Context, opts domain.ListOpts) ([]domain.Settlement, error)
}

// SettlementReport is the document uploaded for each resolved market.
type SettlementReport struct {
	MarketID     uint64                `json:"market_id"`
	WinnerID     uint64                `json:"winner_id"`
	Distance     int                   `json:"distance"`
	ObservedText string                `json:"observed_text"`
	Evidence     common.Hash           `json:"evidence"`
	Oracle       common.Address        `json:"oracle"`
	Volume       uint64                `json:"volume"`
	Fee          uint64                `json:"fee"`
	Dust         uint64                `json:"dust"`
	Refund       bool                  `json:"refund"`
	Payouts      []domain.WinnerPayout `json:"payouts"`
	ResolvedAt   time.Time             `json:"resolved_at"`
	GeneratedAt  time.Time             `json:"generated_at"`
}

// Reporter consumes resolution events from the signal bus and uploads one
// settlement report per resolved market.
type Reporter struct {
	bus         domain.SignalBus
	settlements SettlementSource
	writer      ReportWriter
	logger      *slog.Logger
}

// NewReporter creates a new Reporter.
func NewReporter(bus domain.SignalBus, settlements SettlementSource, writer ReportWriter, logger *slog.Logger) *Reporter {
	return &Reporter{
		bus:         bus,
		settlements: settlements,
		writer:      writer,
		logger:      logger,
	}
}

// Run subscribes to the resolution channel and uploads a report for every
// resolved market until the context is cancelled. Per-event failures are
// logged and skipped so one bad event cannot stall the stream.
func (r *Reporter) Run(ctx context.Context) error {
	events, err := r.bus.Subscribe(ctx, domain.ChannelResolved)
	if err != nil {
		return fmt.Errorf("pipeline: subscribe %s: %w", domain.ChannelResolved, err)
	}

	r.logger.InfoContext(ctx, "pipeline: reporter started",
		slog.String("channel", domain.ChannelResolved),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "pipeline: reporter stopped")
			return ctx.Err()
		case raw, ok := <-events:
			if !ok {
				return fmt.Errorf("pipeline: resolution channel closed")
			}
			if err := r.handle(ctx, raw); err != nil {
				r.logger.WarnContext(ctx, "pipeline: report skipped",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (r *Reporter) handle(ctx context.Context, raw []byte) error {
	var env domain.EventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	// The resolution channel also carries cancellations; those have no
	// settlement report.
	if env.Event != domain.EventMarketResolved {
		return nil
	}

	var ev domain.MarketResolvedEvent
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return fmt.Errorf("decode resolution payload: %w", err)
	}

	s, err := r.settlements.GetSettlement(ctx, ev.MarketID)
	if err != nil {
		return fmt.Errorf("load settlement %d: %w", ev.MarketID, err)
	}

	report := SettlementReport{
		MarketID:     s.MarketID,
		WinnerID:     s.WinnerID,
		Distance:     s.Distance,
		ObservedText: s.ObservedText,
		Evidence:     s.Evidence,
		Oracle:       s.Oracle,
		Volume:       s.Volume,
		Fee:          s.Fee,
		Dust:         s.Dust,
		Refund:       s.Refund,
		Payouts:      s.Payouts,
		ResolvedAt:   s.ResolvedAt,
		GeneratedAt:  time.Now().UTC(),
	}

	path := reportPath(s.MarketID)
	if err := r.writer.PutJSON(ctx, path, report); err != nil {
		return fmt.Errorf("upload report %s: %w", path, err)
	}

	r.logger.InfoContext(ctx, "pipeline: settlement report uploaded",
		slog.Uint64("market_id", s.MarketID),
		slog.String("path", path),
	)
	return nil
}

func reportPath(marketID uint64) string {
	return fmt.Sprintf("reports/settlements/%d.json", marketID)
}
