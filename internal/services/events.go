package services

import (
	"context"
	"log/slog"

	"fintrack/internal/amqp"
)

// EventPublisher sends ledger events to the activity pipeline.
// *amqp.Client satisfies it.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// publish sends ev if a publisher is configured. Failures are logged and
// never fail the caller: the store already holds the change.
func publish(ctx context.Context, p EventPublisher, ev *amqp.LedgerEvent) {
	if p == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping ledger event", "type", ev.Type)
		return
	}
	if err := p.PublishLedgerEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", ev.Type,
			"entity_id", ev.EntityID,
			"error", err)
	}
}
