package audit

import (
	"context"

	"github.com/waynekhien/social-media/internal/domain"
)

// EventProducer records message lifecycle events on the audit stream.
// Production is best-effort; a failure never fails the request.
type EventProducer interface {
	Produce(ctx context.Context, event *domain.MessageEvent) error
	Close() error
}

// NopProducer discards events. Used when no brokers are configured.
type NopProducer struct{}

func (NopProducer) Produce(ctx context.Context, event *domain.MessageEvent) error { return nil }
func (NopProducer) Close() error                                                  { return nil }

// Ensure interface is satisfied at compile time.
var _ EventProducer = NopProducer{}
