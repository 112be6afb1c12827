package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/broker"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/metrics"
)

// Publisher sends domain events to the broker.  Publishing is best effort:
// failures are logged and counted, never returned.
type Publisher struct {
	broker  broker.Broker
	topic   string
	logger  *slog.Logger
	metrics *metrics.Registry
}

func NewPublisher(b broker.Broker, logger *slog.Logger, reg *metrics.Registry) *Publisher {
	return &Publisher{broker: b, topic: Topic, logger: logger, metrics: reg}
}

func (p *Publisher) Publish(ctx context.Context, e Event) {
	defer func() {
		if r := recover(); r != nil {
			p.fail(ctx, e, fmt.Errorf("publish panic: %v", r))
		}
	}()

	if e.IdempotencyKey == "" {
		e.IdempotencyKey = DeriveKey(e)
	}
	payload, err := e.Marshal()
	if err != nil {
		p.fail(ctx, e, err)
		return
	}

	if err := p.broker.Publish(ctx, p.topic, broker.Message{
		ID:      e.ID,
		Key:     e.IdempotencyKey,
		Payload: payload,
	}); err != nil {
		p.fail(ctx, e, err)
		return
	}
	p.metrics.Inc("events.published", string(e.Type))
}

func (p *Publisher) fail(ctx context.Context, e Event, err error) {
	p.metrics.Inc("events.publish_failed", string(e.Type))
	p.logger.ErrorContext(ctx, "event publish failed",
		"event_id", e.ID, "event_type", e.Type, "err", err)
}
