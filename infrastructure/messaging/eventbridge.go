package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"socialcore/domain/events"
	"socialcore/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

// Source is the EventBridge source of every notification.
const Source = "socialcore.views"

// PutEventsAPI is the slice of the EventBridge client the sink uses.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgeSink publishes notifications as view.changed events.
type EventBridgeSink struct {
	client       PutEventsAPI
	eventBusName string
	logger       *zap.Logger
	metrics      *observability.Metrics
}

func NewEventBridgeSink(client PutEventsAPI, eventBusName string, logger *zap.Logger, metrics *observability.Metrics) *EventBridgeSink {
	return &EventBridgeSink{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
		metrics:      metrics,
	}
}

func (s *EventBridgeSink) Notify(ctx context.Context, n events.Notification) error {
	return s.NotifyBatch(ctx, []events.Notification{n})
}

// NotifyBatch sends the notifications in PutEvents calls of at most ten entries.
func (s *EventBridgeSink) NotifyBatch(ctx context.Context, ns []events.Notification) error {
	// EventBridge limits to 10 events per PutEvents call
	const batchSize = 10

	for i := 0; i < len(ns); i += batchSize {
		end := i + batchSize
		if end > len(ns) {
			end = len(ns)
		}
		if err := s.publishBatch(ctx, ns[i:end]); err != nil {
			s.metrics.SinkFailed("eventbridge")
			return err
		}
	}
	return nil
}

func (s *EventBridgeSink) publishBatch(ctx context.Context, ns []events.Notification) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(ns))
	for _, n := range ns {
		detail, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to marshal notification: %w", err)
		}
		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(s.eventBusName),
			Source:       aws.String(Source),
			DetailType:   aws.String(events.EventType),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(n.OccurredAt),
		})
	}

	result, err := s.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to publish events to EventBridge: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil {
				s.logger.Warn("Failed to publish notification",
					zap.String("userID", ns[i].UserID),
					zap.String("view", string(ns[i].View)),
					zap.String("errorCode", aws.ToString(entry.ErrorCode)),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d notifications failed to publish", result.FailedEntryCount)
	}

	s.logger.Debug("Notifications published to EventBridge",
		zap.Int("count", len(entries)),
		zap.String("eventBus", s.eventBusName),
	)
	return nil
}
