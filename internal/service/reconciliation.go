package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/QODOHUB/ayami-storefront/internal/iiko"
	"github.com/QODOHUB/ayami-storefront/internal/models"
	"github.com/QODOHUB/ayami-storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Reconciler retries POS submissions for orders that were persisted
// locally but never made it to the POS.
type Reconciler struct {
	orders      OrderStore
	pos         POSClient
	publisher   FinalizePublisher
	maxAttempts int
	logger      *zap.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(orders OrderStore, pos POSClient, publisher FinalizePublisher, maxAttempts int) *Reconciler {
	return &Reconciler{
		orders:      orders,
		pos:         pos,
		publisher:   publisher,
		maxAttempts: maxAttempts,
		logger:      util.GetLogger(),
	}
}

// HandleSubmissionFailed replays the preserved POS request. A failed
// attempt re-queues the event with the attempt counter bumped; the
// message itself always commits so the stream keeps moving.
func (r *Reconciler) HandleSubmissionFailed(ctx context.Context, event *models.SubmissionFailedEvent) error {
	if event.Attempt >= r.maxAttempts {
		r.logger.Error("Giving up on POS submission, manual intervention required",
			zap.String("order_id", event.OrderID),
			zap.Int("attempts", event.Attempt))
		return nil
	}

	var req iiko.DeliveryCreateRequest
	if err := json.Unmarshal(event.Request, &req); err != nil {
		return fmt.Errorf("failed to unmarshal preserved request for order %s: %w", event.OrderID, err)
	}

	externalID, err := r.pos.CreateDelivery(ctx, &req)
	if err != nil {
		util.OrderSubmissionFailures.Inc()
		r.logger.Warn("POS submission retry failed",
			zap.String("order_id", event.OrderID),
			zap.Int("attempt", event.Attempt+1),
			zap.Error(err))

		retry := &models.SubmissionFailedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeSubmissionFailed,
				Timestamp: time.Now(),
			},
			OrderID:    event.OrderID,
			CustomerID: event.CustomerID,
			Reason:     err.Error(),
			Attempt:    event.Attempt + 1,
			Request:    event.Request,
		}
		return r.publisher.PublishSubmissionFailed(ctx, retry)
	}

	if err := r.orders.MarkOrderSubmitted(ctx, event.OrderID, externalID); err != nil {
		return fmt.Errorf("failed to record external order id: %w", err)
	}

	r.logger.Info("Order submitted to POS on retry",
		zap.String("order_id", event.OrderID),
		zap.String("external_id", externalID),
		zap.Int("attempt", event.Attempt+1))

	submitted := &models.OrderSubmittedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderSubmitted,
			Timestamp: time.Now(),
		},
		OrderID:    event.OrderID,
		ExternalID: externalID,
	}
	if err := r.publisher.PublishOrderSubmitted(ctx, submitted); err != nil {
		r.logger.Error("Failed to publish order-submitted event", zap.Error(err))
	}
	return nil
}
