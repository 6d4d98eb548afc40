// Package service composes the in-memory engines with the durable stores,
// cache, and signal bus behind the API surface.
package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// Emitter fans an engine event out to the signal bus and the durable journal.
// Both sinks are optional; a nil sink is skipped. Emission failures are
// logged and never fail the operation that produced the event.
type Emitter struct {
	bus     domain.SignalBus
	journal domain.JournalStore
	logger  *slog.Logger
}

// NewEmitter creates an Emitter. bus and journal may be nil when the
// corresponding backend is not configured.
func NewEmitter(bus domain.SignalBus, journal domain.JournalStore, logger *slog.Logger) *Emitter {
	return &Emitter{bus: bus, journal: journal, logger: logger}
}

// Emit publishes payload wrapped in an event envelope on channel and appends
// detail to the journal under the event name.
func (e *Emitter) Emit(ctx context.Context, channel, event string, payload any, detail map[string]any) {
	if e.bus != nil {
		env := domain.NewEnvelope(event, payload)
		raw, err := json.Marshal(env)
		if err == nil {
			err = e.bus.Publish(ctx, channel, raw)
		}
		if err != nil {
			e.logger.WarnContext(ctx, "service: event publish failed",
				slog.String("channel", channel),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}

	if e.journal != nil {
		if err := e.journal.Append(ctx, event, detail); err != nil {
			e.logger.WarnContext(ctx, "service: journal append failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
}
