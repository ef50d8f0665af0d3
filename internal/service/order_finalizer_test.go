package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/QODOHUB/ayami-storefront/internal/iiko"
	"github.com/QODOHUB/ayami-storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type finalizerFixture struct {
	orders    *mockOrderStore
	cart      *mockCartStore
	products  *mockCatalogStore
	sessions  *mockSessionStore
	locker    *mockLocker
	gate      *mockGate
	pos       *mockPOS
	publisher *mockPublisher
	finalizer *OrderFinalizer
}

func newFinalizerFixture() *finalizerFixture {
	f := &finalizerFixture{
		orders:    &mockOrderStore{},
		cart:      &mockCartStore{},
		products:  newMockCatalogStore(),
		sessions:  newMockSessionStore(),
		locker:    newMockLocker(),
		gate:      &mockGate{Revision: 5},
		pos:       &mockPOS{ExternalID: "ext-42"},
		publisher: &mockPublisher{},
	}
	f.orders.Cart = f.cart
	f.pos.Customer = &iiko.CustomerInfo{ID: "cust-1", Phone: "+79990001122"}
	f.finalizer = NewOrderFinalizer(
		f.orders, f.cart, f.products, f.sessions, f.locker, f.gate, f.pos, f.publisher)
	return f
}

func (f *finalizerFixture) addCartItem(productID string, price int64, qty int) {
	f.cart.Items = append(f.cart.Items, models.CartItem{
		Line:    models.CartLine{ID: int64(len(f.cart.Items) + 1), CustomerID: "cust-1", ProductID: productID, Quantity: qty},
		Product: models.CatalogProduct{ID: productID, Price: price, Revision: 5, Included: true},
	})
}

func (f *finalizerFixture) session(mutate func(*models.CheckoutSession)) {
	s := &models.CheckoutSession{
		CustomerID:  "cust-1",
		State:       models.StatePaymentMethod,
		ServiceType: models.ServiceTypePickup,
		TimeSlot:    time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC),
	}
	if mutate != nil {
		mutate(s)
	}
	f.sessions.Sessions["cust-1"] = s
}

func TestFinalizeSnapshotsCartAndClears(t *testing.T) {
	f := newFinalizerFixture()
	f.addCartItem("roll-a", 30000, 1)
	f.addCartItem("roll-b", 15000, 1)
	f.session(func(s *models.CheckoutSession) {
		s.PaymentMethod = models.PaymentMethodOnDelivery
	})

	order, err := f.finalizer.Finalize(context.Background(), "cust-1", nil)
	require.NoError(t, err)

	assert.Equal(t, int64(45000), order.TotalAmount)
	assert.Equal(t, models.ServiceTypePickup, order.ServiceType)
	require.Len(t, f.orders.CreatedLines, 2)
	assert.Equal(t, int64(30000), f.orders.CreatedLines[0].UnitPrice)

	assert.Empty(t, f.cart.Items)
	assert.Empty(t, f.sessions.Sessions)
	require.Len(t, f.publisher.Finalized, 1)
	assert.Equal(t, order.ID, f.publisher.Finalized[0].OrderID)
}

func TestFinalizeClearsOnlyOwnCart(t *testing.T) {
	f := newFinalizerFixture()
	f.addCartItem("roll-a", 30000, 1)
	f.cart.Items = append(f.cart.Items, models.CartItem{
		Line:    models.CartLine{ID: 99, CustomerID: "cust-2", ProductID: "roll-b", Quantity: 1},
		Product: models.CatalogProduct{ID: "roll-b", Price: 15000, Revision: 5, Included: true},
	})
	f.session(func(s *models.CheckoutSession) {
		s.PaymentMethod = models.PaymentMethodOnDelivery
	})

	_, err := f.finalizer.Finalize(context.Background(), "cust-1", nil)
	require.NoError(t, err)

	require.Len(t, f.cart.Items, 1)
	assert.Equal(t, "cust-2", f.cart.Items[0].Line.CustomerID)
}

func TestFinalizeAddsSurchargeLine(t *testing.T) {
	f := newFinalizerFixture()
	f.addCartItem("roll-a", 30000, 1)
	f.products.Products["surcharge-zone-2"] = &models.CatalogProduct{
		ID: "surcharge-zone-2", Price: 10000, Revision: 5, Included: true,
	}
	f.session(func(s *models.CheckoutSession) {
		s.ServiceType = models.ServiceTypeDelivery
		s.City = "Moscow"
		s.Street = "Arbat"
		s.House = "12"
		s.SurchargeProductID = "surcharge-zone-2"
		s.PaymentMethod = models.PaymentMethodOnDelivery
	})

	order, err := f.finalizer.Finalize(context.Background(), "cust-1", nil)
	require.NoError(t, err)

	assert.Equal(t, int64(40000), order.TotalAmount)
	assert.Equal(t, int64(10000), order.SurchargeAmount)
	require.Len(t, f.orders.CreatedLines, 2)
	assert.Equal(t, "surcharge-zone-2", f.orders.CreatedLines[1].ProductID)
	assert.Equal(t, 1, f.orders.CreatedLines[1].Quantity)
}

func TestFinalizeExactlyOnce(t *testing.T) {
	f := newFinalizerFixture()
	f.addCartItem("roll-a", 30000, 1)
	f.session(func(s *models.CheckoutSession) {
		s.PaymentMethod = models.PaymentMethodOnDelivery
	})

	// A concurrent finalize already holds the customer lock.
	f.locker.Held["checkout:cust-1"] = true

	_, err := f.finalizer.Finalize(context.Background(), "cust-1", nil)
	assert.ErrorIs(t, err, ErrNoActiveSession)
	assert.Zero(t, f.orders.CreateCalls)
}

func TestFinalizeReleasesLock(t *testing.T) {
	f := newFinalizerFixture()
	f.addCartItem("roll-a", 30000, 1)
	f.session(func(s *models.CheckoutSession) {
		s.PaymentMethod = models.PaymentMethodOnDelivery
	})

	_, err := f.finalizer.Finalize(context.Background(), "cust-1", nil)
	require.NoError(t, err)
	assert.False(t, f.locker.Held["checkout:cust-1"])
}

func TestFinalizeNoSession(t *testing.T) {
	f := newFinalizerFixture()

	_, err := f.finalizer.Finalize(context.Background(), "cust-1", nil)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestFinalizeStaleCartAborts(t *testing.T) {
	f := newFinalizerFixture()
	f.cart.Items = []models.CartItem{{
		Line:    models.CartLine{ID: 1, CustomerID: "cust-1", ProductID: "roll-a", Quantity: 1},
		Product: models.CatalogProduct{ID: "roll-a", Price: 30000, Revision: 4, Included: true},
	}}
	f.session(func(s *models.CheckoutSession) {
		s.PaymentMethod = models.PaymentMethodOnDelivery
	})

	_, err := f.finalizer.Finalize(context.Background(), "cust-1", nil)
	assert.ErrorIs(t, err, ErrStaleCart)
	assert.Zero(t, f.orders.CreateCalls)
	assert.Empty(t, f.sessions.Sessions)
}

func TestFinalizeStaleSurchargeAborts(t *testing.T) {
	f := newFinalizerFixture()
	f.addCartItem("roll-a", 30000, 1)
	f.products.Products["surcharge-zone-2"] = &models.CatalogProduct{
		ID: "surcharge-zone-2", Price: 10000, Revision: 4, Included: true,
	}
	f.session(func(s *models.CheckoutSession) {
		s.SurchargeProductID = "surcharge-zone-2"
		s.PaymentMethod = models.PaymentMethodOnDelivery
	})

	_, err := f.finalizer.Finalize(context.Background(), "cust-1", nil)
	assert.ErrorIs(t, err, ErrStaleCart)
}

func TestFinalizeEmptyCart(t *testing.T) {
	f := newFinalizerFixture()
	f.session(func(s *models.CheckoutSession) {
		s.PaymentMethod = models.PaymentMethodOnDelivery
	})

	_, err := f.finalizer.Finalize(context.Background(), "cust-1", nil)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestFinalizeOnlineRequiresConfirmation(t *testing.T) {
	f := newFinalizerFixture()
	f.addCartItem("roll-a", 30000, 1)
	f.session(func(s *models.CheckoutSession) {
		s.PaymentMethod = models.PaymentMethodOnline
		s.PaymentIntentID = "intent-1"
	})

	_, err := f.finalizer.Finalize(context.Background(), "cust-1", nil)
	assert.ErrorIs(t, err, ErrPaymentMismatch)

	_, err = f.finalizer.Finalize(context.Background(), "cust-1", &PaymentConfirmation{IntentID: "other"})
	assert.ErrorIs(t, err, ErrPaymentMismatch)
}

func TestFinalizeCatalogUnavailableHardStop(t *testing.T) {
	f := newFinalizerFixture()
	f.addCartItem("roll-a", 30000, 1)
	f.gate.Err = fmt.Errorf("%w: timeout", ErrCatalogUnavailable)
	f.session(func(s *models.CheckoutSession) {
		s.PaymentMethod = models.PaymentMethodOnDelivery
	})

	_, err := f.finalizer.Finalize(context.Background(), "cust-1", nil)
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.Zero(t, f.orders.CreateCalls)
}

func TestFinalizeBonusCappedAtTotal(t *testing.T) {
	f := newFinalizerFixture()
	f.addCartItem("roll-a", 30000, 1)
	f.pos.Customer.WalletBalances = []iiko.WalletBalance{{Balance: 600}}
	f.session(func(s *models.CheckoutSession) {
		s.UseBonus = true
	})

	order, err := f.finalizer.Finalize(context.Background(), "cust-1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), order.BonusAmount)
}

func TestFinalizeBonusOnlyInsufficient(t *testing.T) {
	f := newFinalizerFixture()
	f.addCartItem("roll-a", 30000, 1)
	f.pos.Customer.WalletBalances = []iiko.WalletBalance{{Balance: 100}}
	// No payment method: the session expected bonus to cover everything.
	f.session(func(s *models.CheckoutSession) {
		s.UseBonus = true
	})

	_, err := f.finalizer.Finalize(context.Background(), "cust-1", nil)
	assert.ErrorIs(t, err, ErrInsufficientBonus)
	assert.Zero(t, f.orders.CreateCalls)
}

func TestFinalizeOnlineKeepsPricedBonus(t *testing.T) {
	f := newFinalizerFixture()
	f.addCartItem("roll-a", 45000, 1)
	// The intent was priced with a 10000 bonus; the balance has since
	// dropped and must not leak into the settled amounts.
	f.pos.Customer.WalletBalances = []iiko.WalletBalance{{Balance: 20}}
	f.session(func(s *models.CheckoutSession) {
		s.UseBonus = true
		s.BonusApplied = 10000
		s.PaymentMethod = models.PaymentMethodOnline
		s.PaymentIntentID = "intent-1"
	})

	order, err := f.finalizer.Finalize(context.Background(), "cust-1", &PaymentConfirmation{IntentID: "intent-1"})
	require.NoError(t, err)

	assert.Equal(t, int64(10000), order.BonusAmount)
	req := f.pos.DeliveryReq
	require.NotNil(t, req)
	require.Len(t, req.Order.Payments, 2)
	assert.Equal(t, int64(35000), req.Order.Payments[0].Sum)
	assert.Equal(t, int64(10000), req.Order.Payments[1].Sum)
}

func TestFinalizeSubmissionSuccess(t *testing.T) {
	f := newFinalizerFixture()
	f.addCartItem("roll-a", 30000, 1)
	f.session(func(s *models.CheckoutSession) {
		s.PaymentMethod = models.PaymentMethodOnDelivery
	})

	order, err := f.finalizer.Finalize(context.Background(), "cust-1", nil)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusSubmitted, order.Status)
	assert.Equal(t, "ext-42", order.ExternalID)
	assert.Equal(t, order.ID, f.orders.SubmittedOrderID)
}

func TestFinalizeSubmissionFailureKeepsOrder(t *testing.T) {
	f := newFinalizerFixture()
	f.addCartItem("roll-a", 30000, 1)
	f.pos.DeliveryErr = errors.New("pos is down")
	f.session(func(s *models.CheckoutSession) {
		s.PaymentMethod = models.PaymentMethodOnDelivery
	})

	order, err := f.finalizer.Finalize(context.Background(), "cust-1", nil)
	require.NoError(t, err)

	// The local order stands; the failure goes to the reconciliation stream.
	assert.Equal(t, models.OrderStatusPendingSubmission, order.Status)
	assert.Empty(t, f.orders.SubmittedOrderID)
	require.Len(t, f.publisher.Failed, 1)
	assert.Equal(t, order.ID, f.publisher.Failed[0].OrderID)
	assert.Equal(t, 1, f.publisher.Failed[0].Attempt)
	assert.NotEmpty(t, f.publisher.Failed[0].Request)
}

func TestFinalizeDeliveryRequestShape(t *testing.T) {
	f := newFinalizerFixture()
	f.addCartItem("roll-a", 30000, 2)
	f.products.Products["surcharge-zone-2"] = &models.CatalogProduct{
		ID: "surcharge-zone-2", Price: 10000, Revision: 5, Included: true,
	}
	f.pos.Customer.WalletBalances = []iiko.WalletBalance{{Balance: 100}}
	f.session(func(s *models.CheckoutSession) {
		s.ServiceType = models.ServiceTypeDelivery
		s.City = "Moscow"
		s.Street = "Arbat"
		s.House = "12"
		s.Flat = "7"
		s.OrganizationID = "org-1"
		s.TerminalGroupID = "term-1"
		s.SurchargeProductID = "surcharge-zone-2"
		s.UseBonus = true
		s.BonusApplied = 10000
		s.PaymentMethod = models.PaymentMethodOnline
		s.PaymentIntentID = "intent-1"
	})

	order, err := f.finalizer.Finalize(context.Background(), "cust-1", &PaymentConfirmation{IntentID: "intent-1"})
	require.NoError(t, err)

	req := f.pos.DeliveryReq
	require.NotNil(t, req)
	assert.Equal(t, "org-1", req.OrganizationID)
	assert.Equal(t, "term-1", req.TerminalGroupID)
	assert.Equal(t, "DeliveryByCourier", req.Order.OrderServiceType)
	assert.Equal(t, "+79990001122", req.Order.Phone)
	require.NotNil(t, req.Order.DeliveryPoint)
	assert.Equal(t, "Moscow", req.Order.DeliveryPoint.Address.Street.City)
	assert.Equal(t, "12", req.Order.DeliveryPoint.Address.House)
	require.Len(t, req.Order.Items, 2)
	assert.Equal(t, 2, req.Order.Items[0].Amount)

	// Card settlement for the net sum, loyalty for the applied bonus.
	require.Len(t, req.Order.Payments, 2)
	assert.Equal(t, "Card", req.Order.Payments[0].PaymentTypeKind)
	assert.Equal(t, order.TotalAmount-order.BonusAmount, req.Order.Payments[0].Sum)
	assert.Equal(t, "LoyaltyCard", req.Order.Payments[1].PaymentTypeKind)
	assert.Equal(t, int64(10000), req.Order.Payments[1].Sum)
}

func TestFinalizePickupHasNoDeliveryPoint(t *testing.T) {
	f := newFinalizerFixture()
	f.addCartItem("roll-a", 30000, 1)
	f.session(func(s *models.CheckoutSession) {
		s.PaymentMethod = models.PaymentMethodOnDelivery
	})

	_, err := f.finalizer.Finalize(context.Background(), "cust-1", nil)
	require.NoError(t, err)

	req := f.pos.DeliveryReq
	require.NotNil(t, req)
	assert.Equal(t, "DeliveryPickUp", req.Order.OrderServiceType)
	assert.Nil(t, req.Order.DeliveryPoint)
}
