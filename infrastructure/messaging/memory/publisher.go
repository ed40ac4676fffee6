package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"watchtower-backend/domain/events"
)

// Publisher is an in-process event publisher for local runs and tests.
// It records everything it is handed.
type Publisher struct {
	logger *zap.Logger

	mu        sync.Mutex
	published []events.DomainEvent
}

// NewPublisher creates an in-memory publisher.
func NewPublisher(logger *zap.Logger) *Publisher {
	return &Publisher{logger: logger}
}

// Publish records a single event.
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch records a batch of events.
func (p *Publisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	if len(batch) == 0 {
		return nil
	}

	p.mu.Lock()
	p.published = append(p.published, batch...)
	p.mu.Unlock()

	for _, event := range batch {
		p.logger.Debug("event published",
			zap.String("type", event.GetEventType()),
			zap.String("aggregate_id", event.GetAggregateID()),
		)
	}
	return nil
}

// Published returns a copy of everything published so far.
func (p *Publisher) Published() []events.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]events.DomainEvent, len(p.published))
	copy(out, p.published)
	return out
}
