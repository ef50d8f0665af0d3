package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/QODOHUB/ayami-storefront/internal/models"
	"github.com/QODOHUB/ayami-storefront/internal/util"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderFinalized publishes OrderFinalized event
func (ep *EventPublisher) PublishOrderFinalized(ctx context.Context, event *models.OrderFinalizedEvent) error {
	key := fmt.Sprintf("order-%s", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishSubmissionFailed publishes SubmissionFailed event
func (ep *EventPublisher) PublishSubmissionFailed(ctx context.Context, event *models.SubmissionFailedEvent) error {
	key := fmt.Sprintf("order-%s", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderSubmitted publishes OrderSubmitted event
func (ep *EventPublisher) PublishOrderSubmitted(ctx context.Context, event *models.OrderSubmittedEvent) error {
	key := fmt.Sprintf("order-%s", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onSubmissionFailed func(context.Context, *models.SubmissionFailedEvent) error
	logger             *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnSubmissionFailed registers a handler for SubmissionFailed events
func (eh *EventHandler) OnSubmissionFailed(handler func(context.Context, *models.SubmissionFailedEvent) error) {
	eh.onSubmissionFailed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeSubmissionFailed:
		if eh.onSubmissionFailed != nil {
			var event models.SubmissionFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SubmissionFailed event: %w", err)
			}
			return eh.onSubmissionFailed(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
