package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// Watcher subscribes to the resolution and payout channels and turns engine
// events into operator alerts.
type Watcher struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewWatcher creates a Watcher over bus.
func NewWatcher(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Watcher {
	return &Watcher{bus: bus, notifier: notifier, logger: logger}
}

// Run consumes events until the context is cancelled. Alert delivery
// failures are logged, never fatal.
func (w *Watcher) Run(ctx context.Context) error {
	channels := []string{domain.ChannelResolved, domain.ChannelPayouts}
	events := make(chan []byte, 64)

	for _, ch := range channels {
		src, err := w.bus.Subscribe(ctx, ch)
		if err != nil {
			return fmt.Errorf("notify: subscribe %s: %w", ch, err)
		}
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case raw, ok := <-src:
					if !ok {
						return
					}
					select {
					case events <- raw:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	w.logger.InfoContext(ctx, "notify: watcher started")
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "notify: watcher stopped")
			return ctx.Err()
		case raw := <-events:
			w.handle(ctx, raw)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, raw []byte) {
	var env domain.EventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return
	}

	title, message, ok := formatAlert(env)
	if !ok {
		return
	}
	if err := w.notifier.Notify(ctx, env.Event, title, message); err != nil {
		w.logger.WarnContext(ctx, "notify: alert delivery failed",
			slog.String("event", env.Event),
			slog.String("error", err.Error()),
		)
	}
}

// formatAlert renders the alert text for the events operators subscribe to.
func formatAlert(env domain.EventEnvelope) (title, message string, ok bool) {
	switch env.Event {
	case domain.EventMarketResolved:
		var ev domain.MarketResolvedEvent
		if json.Unmarshal(env.Payload, &ev) != nil {
			return "", "", false
		}
		if ev.Refund {
			return "Market refunded",
				fmt.Sprintf("market %d closed without a contest; stakes refunded (volume %d)", ev.MarketID, ev.Volume),
				true
		}
		return "Market resolved",
			fmt.Sprintf("market %d: submission %d won at distance %d (volume %d, fee %d)",
				ev.MarketID, ev.WinnerID, ev.Distance, ev.Volume, ev.Fee),
			true

	case domain.EventMarketCancelled:
		var ev domain.MarketCancelledEvent
		if json.Unmarshal(env.Payload, &ev) != nil {
			return "", "", false
		}
		return "Market cancelled",
			fmt.Sprintf("market %d cancelled; %d refunded", ev.MarketID, ev.Refunded),
			true

	case domain.EventWithdrawal:
		var ev domain.WithdrawalEvent
		if json.Unmarshal(env.Payload, &ev) != nil {
			return "", "", false
		}
		return "Withdrawal completed",
			fmt.Sprintf("%s withdrew %d", ev.Account.Hex(), ev.Amount),
			true
	}
	return "", "", false
}
