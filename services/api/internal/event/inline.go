package event

import (
	"context"
	"log/slog"
	"slices"

	pkgkafka "github.com/bookineo/bookineo/pkg/kafka"
)

// InlinePublisher hands events for the given topics straight to a handler
// in a background goroutine. It stands in for Kafka when no brokers are
// configured; events for other topics are dropped.
type InlinePublisher struct {
	handler pkgkafka.Handler
	topics  []string
	logger  *slog.Logger
}

func NewInlinePublisher(handler pkgkafka.Handler, topics []string, logger *slog.Logger) *InlinePublisher {
	return &InlinePublisher{handler: handler, topics: topics, logger: logger}
}

func (p *InlinePublisher) Publish(ctx context.Context, topic string, e *pkgkafka.Event) error {
	if !slices.Contains(p.topics, topic) {
		return nil
	}

	// The request context ends with the response.
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := p.handler(ctx, e); err != nil {
			p.logger.ErrorContext(ctx, "inline event handler failed",
				slog.String("event_type", e.EventType),
				slog.String("event_id", e.EventID),
				slog.String("error", err.Error()),
			)
		}
	}()
	return nil
}
