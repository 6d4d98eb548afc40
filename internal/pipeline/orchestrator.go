package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs the report goroutines: the event-driven reporter and the
// interval-driven digest exporter.
type Orchestrator struct {
	reporter       *Reporter
	exporter       *Exporter
	exportInterval time.Duration
	logger         *slog.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(reporter *Reporter, exporter *Exporter, exportInterval time.Duration, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		reporter:       reporter,
		exporter:       exporter,
		exportInterval: exportInterval,
		logger:         logger,
	}
}

// Run starts both jobs in an errgroup. Each goroutine respects ctx
// cancellation; a non-context error from either job cancels the other and is
// returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.InfoContext(ctx, "pipeline: orchestrator starting",
		slog.Duration("export_interval", o.exportInterval),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.reporter.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("reporter: %w", err)
	})

	g.Go(func() error {
		err := o.exporter.RunLoop(ctx, o.exportInterval)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("exporter: %w", err)
	})

	if err := g.Wait(); err != nil {
		o.logger.ErrorContext(ctx, "pipeline: orchestrator stopped with error",
			slog.String("error", err.Error()),
		)
		return err
	}

	o.logger.InfoContext(ctx, "pipeline: orchestrator stopped cleanly")
	return nil
}
