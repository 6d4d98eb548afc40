package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/marketengine/internal/pipeline"
	"github.com/alanyoungcy/marketengine/internal/server"
	"github.com/alanyoungcy/marketengine/internal/server/handler"
	"github.com/alanyoungcy/marketengine/internal/server/ws"
)

// shutdownGrace is how long in-flight HTTP requests get to finish.
const shutdownGrace = 10 * time.Second

// ServeMode runs the full engine: HTTP + WebSocket API, the report
// pipeline, and the alert watcher. It blocks until the context is
// cancelled or a component fails.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "serve mode starting")

	g, ctx := errgroup.WithContext(ctx)
	startedAt := time.Now().UTC()

	// WebSocket hub over the signal bus.
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
		g.Go(func() error {
			err := hub.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ws hub: %w", err)
		})
	}

	// HTTP API.
	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(a.cfg.Mode, startedAt, a.logger),
		Markets:     handler.NewMarketHandler(deps.MarketSvc, a.logger),
		Settlements: handler.NewSettlementHandler(deps.SettlementSvc, a.logger),
		Treasury:    handler.NewTreasuryHandler(deps.TreasurySvc, a.logger),
		Tokens:      handler.NewTokenHandler(deps.RegistrySvc, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		AdminAPIKey:     a.cfg.Server.AdminAPIKey,
		RateLimiter:     deps.RateLimiter,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow(),
	}, handlers, hub, a.logger)

	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Report pipeline: per-settlement reports plus periodic digests.
	if deps.BlobWriter != nil && deps.SettlementStore != nil && deps.SignalBus != nil {
		reporter := pipeline.NewReporter(deps.SignalBus, deps.SettlementStore, deps.BlobWriter, a.logger)
		exporter := pipeline.NewExporter(deps.SettlementStore, deps.BlobWriter, a.cfg.Pipeline.ExportWindow(), a.logger)
		orch := pipeline.NewOrchestrator(reporter, exporter, a.cfg.Pipeline.ExportInterval(), a.logger)
		g.Go(func() error {
			err := orch.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("report pipeline: %w", err)
		})
	} else {
		a.logger.InfoContext(ctx, "report pipeline disabled (requires postgres, redis, and s3)")
	}

	// Operator alerts.
	if deps.Watcher != nil {
		g.Go(func() error {
			err := deps.Watcher.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("alert watcher: %w", err)
		})
	}

	err := g.Wait()
	if err != nil && ctx.Err() == nil {
		a.logger.ErrorContext(ctx, "serve mode stopped with error", slog.String("error", err.Error()))
		return err
	}
	a.logger.Info("serve mode stopped")
	return nil
}

// StandbyMode keeps the in-memory core wired and waits. It exists so a warm
// replica can validate its configuration and fee schedule without serving
// traffic.
func (a *App) StandbyMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "standby mode: engine wired, waiting",
		slog.Uint64("max_supply", deps.Registry.MaxSupply()),
		slog.Uint64("total_fee_bps", deps.Fees.TotalFeeBps()),
	)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("standby mode stopped")
			return nil
		case <-ticker.C:
			a.logger.Debug("standby heartbeat")
		}
	}
}
