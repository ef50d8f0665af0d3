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

const finalizeLockTTL = 10 * time.Second

// PaymentConfirmation ties a confirmed gateway payment to the finalize call.
type PaymentConfirmation struct {
	IntentID string
}

// OrderFinalizer converts a completed checkout session and the live cart
// into a persisted Order, exactly once per session.
type OrderFinalizer struct {
	orders    OrderStore
	cart      CartStore
	products  CatalogStore
	sessions  SessionStore
	locker    Locker
	gate      FreshnessGate
	pos       POSClient
	publisher FinalizePublisher
	logger    *zap.Logger
}

// NewOrderFinalizer creates a new order finalizer
func NewOrderFinalizer(
	orders OrderStore,
	cart CartStore,
	products CatalogStore,
	sessions SessionStore,
	locker Locker,
	gate FreshnessGate,
	pos POSClient,
	publisher FinalizePublisher,
) *OrderFinalizer {
	return &OrderFinalizer{
		orders:    orders,
		cart:      cart,
		products:  products,
		sessions:  sessions,
		locker:    locker,
		gate:      gate,
		pos:       pos,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Finalize re-verifies catalog freshness, snapshots the cart, persists the
// order with its lines, clears the cart and destroys the session, all
// under a customer-scoped exclusive section. The POS submission happens
// after the lock is released; its failure never rolls back the local order.
func (f *OrderFinalizer) Finalize(ctx context.Context, customerID string, conf *PaymentConfirmation) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderFinalizer.Finalize")
	defer span.End()

	order, submission, err := f.finalizeLocked(ctx, customerID, conf)
	if err != nil {
		return nil, err
	}

	f.submit(ctx, order, submission)
	return order, nil
}

func (f *OrderFinalizer) finalizeLocked(ctx context.Context, customerID string, conf *PaymentConfirmation) (*models.Order, *iiko.DeliveryCreateRequest, error) {
	acquired, err := f.locker.AcquireLock(ctx, "checkout:"+customerID, finalizeLockTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire finalize lock: %w", err)
	}
	if !acquired {
		// Another finalize owns the session; by the time it finishes
		// the session is gone.
		return nil, nil, ErrNoActiveSession
	}
	defer func() {
		if err := f.locker.ReleaseLock(ctx, "checkout:"+customerID); err != nil {
			f.logger.Warn("Failed to release finalize lock",
				zap.String("customer_id", customerID),
				zap.Error(err))
		}
	}()

	session, err := f.sessions.GetSession(ctx, customerID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, ErrNoActiveSession
	}

	if session.PaymentMethod == models.PaymentMethodOnline {
		if conf == nil || conf.IntentID != session.PaymentIntentID {
			util.OrdersFailedTotal.WithLabelValues("payment_mismatch").Inc()
			return nil, nil, ErrPaymentMismatch
		}
	}

	revision, err := f.gate.EnsureFresh(ctx)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("catalog_unavailable").Inc()
		return nil, nil, err
	}

	items, err := f.cart.ListCartItems(ctx, customerID)
	if err != nil {
		return nil, nil, err
	}
	if len(items) == 0 {
		return nil, nil, ErrEmptyCart
	}

	var total int64
	for _, item := range items {
		if item.Product.Revision != revision || !item.Product.Included {
			util.OrdersFailedTotal.WithLabelValues("stale_cart").Inc()
			util.CheckoutSessionsAborted.WithLabelValues("stale_cart").Inc()
			_ = f.sessions.DeleteSession(ctx, customerID)
			return nil, nil, ErrStaleCart
		}
		total += item.Subtotal()
	}

	var surchargeAmount int64
	if session.SurchargeProductID != "" {
		surcharge, err := f.products.GetProductByID(ctx, session.SurchargeProductID)
		if err != nil || surcharge.Revision != revision {
			util.OrdersFailedTotal.WithLabelValues("stale_cart").Inc()
			_ = f.sessions.DeleteSession(ctx, customerID)
			return nil, nil, ErrStaleCart
		}
		surchargeAmount = surcharge.Price
		total += surchargeAmount
	}

	var bonusAmount int64
	customer, err := f.pos.GetCustomer(ctx, customerID)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("catalog_unavailable").Inc()
		return nil, nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if session.UseBonus {
		if session.PaymentMethod == models.PaymentMethodOnline {
			// The gateway captured total minus this amount; a balance
			// read now could disagree with what was priced.
			bonusAmount = session.BonusApplied
		} else {
			bonusAmount = customer.BonusBalanceMinor()
		}
		if bonusAmount > total {
			bonusAmount = total
		}
		// Bonus-only settlement needs the balance to cover everything.
		if conf == nil && session.PaymentMethod == "" && bonusAmount < total {
			util.OrdersFailedTotal.WithLabelValues("insufficient_bonus").Inc()
			_ = f.sessions.DeleteSession(ctx, customerID)
			return nil, nil, ErrInsufficientBonus
		}
	}

	order := &models.Order{
		ID:              uuid.New().String(),
		CustomerID:      customerID,
		TotalAmount:     total,
		BonusAmount:     bonusAmount,
		SurchargeAmount: surchargeAmount,
		ServiceType:     session.ServiceType,
		Status:          models.OrderStatusPendingSubmission,
	}

	lines := make([]models.OrderLine, 0, len(items)+1)
	for _, item := range items {
		lines = append(lines, models.OrderLine{
			ProductID: item.Product.ID,
			Quantity:  item.Line.Quantity,
			UnitPrice: item.Product.Price,
		})
	}
	if session.SurchargeProductID != "" {
		lines = append(lines, models.OrderLine{
			ProductID: session.SurchargeProductID,
			Quantity:  1,
			UnitPrice: surchargeAmount,
		})
	}

	if err := f.orders.CreateOrderTx(ctx, order, lines); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, nil, fmt.Errorf("failed to persist order: %w", err)
	}

	if err := f.sessions.DeleteSession(ctx, customerID); err != nil {
		f.logger.Error("Failed to destroy session after finalize",
			zap.String("customer_id", customerID),
			zap.Error(err))
	}

	util.OrdersFinalizedTotal.Inc()
	f.logger.Info("Order finalized",
		zap.String("order_id", order.ID),
		zap.String("customer_id", customerID),
		zap.Int64("total", total),
		zap.Int64("bonus", bonusAmount))

	f.publishFinalized(ctx, order, lines)

	return order, buildSubmission(session, customer, conf, order, lines), nil
}

// submit mirrors the order to the POS, best effort. Failure leaves the
// order PENDING_SUBMISSION and hands it to the reconciliation stream.
func (f *OrderFinalizer) submit(ctx context.Context, order *models.Order, req *iiko.DeliveryCreateRequest) {
	externalID, err := f.pos.CreateDelivery(ctx, req)
	if err != nil {
		util.OrderSubmissionFailures.Inc()
		f.logger.Error("POS order submission failed, queued for reconciliation",
			zap.String("order_id", order.ID),
			zap.Error(err))

		payload, _ := json.Marshal(req)
		event := &models.SubmissionFailedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeSubmissionFailed,
				Timestamp: time.Now(),
			},
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			Reason:     err.Error(),
			Attempt:    1,
			Request:    payload,
		}
		if err := f.publisher.PublishSubmissionFailed(ctx, event); err != nil {
			f.logger.Error("Failed to publish submission-failed event", zap.Error(err))
		}
		return
	}

	if err := f.orders.MarkOrderSubmitted(ctx, order.ID, externalID); err != nil {
		f.logger.Error("Failed to record external order id",
			zap.String("order_id", order.ID),
			zap.Error(err))
		return
	}
	order.Status = models.OrderStatusSubmitted
	order.ExternalID = externalID
}

func (f *OrderFinalizer) publishFinalized(ctx context.Context, order *models.Order, lines []models.OrderLine) {
	lineData := make([]models.OrderLineData, len(lines))
	for i, l := range lines {
		lineData[i] = models.OrderLineData{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}

	event := &models.OrderFinalizedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderFinalized,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		TotalAmount: order.TotalAmount,
		BonusAmount: order.BonusAmount,
		ServiceType: order.ServiceType,
		Lines:       lineData,
	}

	if err := f.publisher.PublishOrderFinalized(ctx, event); err != nil {
		f.logger.Error("Failed to publish order-finalized event", zap.Error(err))
	}
}

// buildSubmission assembles the POS order request from session fields
// before the session is destroyed.
func buildSubmission(session *models.CheckoutSession, customer *iiko.CustomerInfo, conf *PaymentConfirmation, order *models.Order, lines []models.OrderLine) *iiko.DeliveryCreateRequest {
	items := make([]iiko.OrderItem, len(lines))
	for i, l := range lines {
		items[i] = iiko.OrderItem{
			ProductID: l.ProductID,
			Type:      "Product",
			Amount:    l.Quantity,
		}
	}

	var payments []iiko.OrderPayment
	if conf != nil {
		payments = append(payments, iiko.OrderPayment{
			PaymentTypeKind:       "Card",
			Sum:                   order.TotalAmount - order.BonusAmount,
			IsPrepay:              true,
			IsProcessedExternally: true,
		})
	}
	if order.BonusAmount > 0 {
		payments = append(payments, iiko.OrderPayment{
			PaymentTypeKind: "LoyaltyCard",
			Sum:             order.BonusAmount,
		})
	}

	serviceType := "DeliveryPickUp"
	var point *iiko.DeliveryPoint
	if session.ServiceType == models.ServiceTypeDelivery {
		serviceType = "DeliveryByCourier"
		point = &iiko.DeliveryPoint{
			Address: iiko.Address{
				Street: iiko.Street{
					City: session.City,
					Name: session.Street,
				},
				House:    session.House,
				Entrance: session.Entrance,
				Floor:    session.Floor,
				Flat:     session.Flat,
			},
		}
	}

	return &iiko.DeliveryCreateRequest{
		OrganizationID:  session.OrganizationID,
		TerminalGroupID: session.TerminalGroupID,
		Order: iiko.OrderPayload{
			Phone:            customer.Phone,
			OrderServiceType: serviceType,
			CompleteBefore:   session.TimeSlot.Format("2006-01-02 15:04:05.000"),
			Items:            items,
			Payments:         payments,
			DeliveryPoint:    point,
			Comment:          session.Comment,
		},
	}
}
