package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"watchtower-backend/domain/events"
)

// putEventsMax is the PutEvents API batch limit.
const putEventsMax = 10

// Publisher implements the EventPublisher interface on an EventBridge bus,
// where downstream consumers (analytics, audit) pick domain events up.
type Publisher struct {
	client  *eventbridge.Client
	busName string
	source  string
	logger  *zap.Logger
}

// NewPublisher creates an EventBridge-backed publisher.
func NewPublisher(client *eventbridge.Client, busName, source string, logger *zap.Logger) *Publisher {
	if source == "" {
		source = "watchtower"
	}
	return &Publisher{
		client:  client,
		busName: busName,
		source:  source,
		logger:  logger,
	}
}

// Publish sends a single event
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends events in batches of up to ten
func (p *Publisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	for start := 0; start < len(batch); start += putEventsMax {
		end := start + putEventsMax
		if end > len(batch) {
			end = len(batch)
		}

		entries := make([]types.PutEventsRequestEntry, 0, end-start)
		for _, event := range batch[start:end] {
			detail, err := json.Marshal(event)
			if err != nil {
				return fmt.Errorf("failed to marshal event: %w", err)
			}
			entries = append(entries, types.PutEventsRequestEntry{
				EventBusName: aws.String(p.busName),
				Source:       aws.String(p.source),
				DetailType:   aws.String(event.GetEventType()),
				Detail:       aws.String(string(detail)),
			})
		}

		out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
		if err != nil {
			return fmt.Errorf("failed to publish events: %w", err)
		}
		if out.FailedEntryCount > 0 {
			for _, entry := range out.Entries {
				if entry.ErrorCode != nil {
					p.logger.Error("event rejected by bus",
						zap.String("code", aws.ToString(entry.ErrorCode)),
						zap.String("message", aws.ToString(entry.ErrorMessage)),
					)
				}
			}
			return fmt.Errorf("event bus rejected %d of %d events", out.FailedEntryCount, len(entries))
		}
	}
	return nil
}
