package service

import (
	"context"
	"fmt"
	"time"

	"github.com/QODOHUB/ayami-storefront/config"
	"github.com/QODOHUB/ayami-storefront/internal/iiko"
	"github.com/QODOHUB/ayami-storefront/internal/models"
	"github.com/QODOHUB/ayami-storefront/internal/payment"
	"github.com/QODOHUB/ayami-storefront/internal/util"

	"go.uber.org/zap"
)

// Address field caps; a violation re-prompts the same step.
const (
	maxCityLen    = 60
	maxStreetLen  = 60
	maxHouseLen   = 10
	maxExtraLen   = 10
	maxCommentLen = 200
)

// CheckoutResult is returned by the steps that may finish the session:
// either the finalized order or the redirect the customer must complete.
type CheckoutResult struct {
	Session      *models.CheckoutSession `json:"session,omitempty"`
	Order        *models.Order           `json:"order,omitempty"`
	PaymentURL   string                  `json:"payment_url,omitempty"`
	IntentID     string                  `json:"intent_id,omitempty"`
	PayableSum   int64                   `json:"payable_sum,omitempty"`
	BonusOffered int64                   `json:"bonus_offered,omitempty"`
}

// CheckoutService drives the per-customer checkout session. Each user
// action is a fresh invocation that loads the session, transitions it and
// persists the result; no computation is live between turns.
type CheckoutService struct {
	sessions  SessionStore
	cart      *CartService
	products  CatalogStore
	gate      FreshnessGate
	pos       POSClient
	gateway   PaymentGateway
	finalizer *OrderFinalizer
	cfg       config.CheckoutConfig
	returnURL string
	zonesURL  string
	logger    *zap.Logger
	now       func() time.Time
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	sessions SessionStore,
	cart *CartService,
	products CatalogStore,
	gate FreshnessGate,
	pos POSClient,
	gateway PaymentGateway,
	finalizer *OrderFinalizer,
	cfg config.CheckoutConfig,
	returnURL string,
	zonesURL string,
) *CheckoutService {
	return &CheckoutService{
		sessions:  sessions,
		cart:      cart,
		products:  products,
		gate:      gate,
		pos:       pos,
		gateway:   gateway,
		finalizer: finalizer,
		cfg:       cfg,
		returnURL: returnURL,
		zonesURL:  zonesURL,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// Start opens a checkout session for the customer, or resumes the live one.
func (s *CheckoutService) Start(ctx context.Context, customerID string) (*models.CheckoutSession, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Start")
	defer span.End()

	if existing, err := s.sessions.GetSession(ctx, customerID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	items, err := s.cart.List(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	session := &models.CheckoutSession{
		CustomerID: customerID,
		State:      models.StateServiceType,
		CreatedAt:  s.now(),
		UpdatedAt:  s.now(),
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}

	util.CheckoutSessionsStarted.Inc()
	s.logger.Info("Checkout session started", zap.String("customer_id", customerID))
	return session, nil
}

// Cancel destroys the session from any state.
func (s *CheckoutService) Cancel(ctx context.Context, customerID string) error {
	return s.sessions.DeleteSession(ctx, customerID)
}

// ChooseServiceType branches the flow into delivery or pickup.
func (s *CheckoutService) ChooseServiceType(ctx context.Context, customerID, serviceType string) (*models.CheckoutSession, error) {
	session, err := s.load(ctx, customerID, models.StateServiceType)
	if err != nil {
		return nil, err
	}

	switch serviceType {
	case models.ServiceTypeDelivery:
		session.ServiceType = serviceType
		session.State = models.StateCity
	case models.ServiceTypePickup:
		session.ServiceType = serviceType
		session.State = models.StatePickupOrg
	default:
		return nil, fmt.Errorf("%w: unknown service type %q", ErrValidation, serviceType)
	}

	return session, s.save(ctx, session)
}

// ChoosePickupOrg fixes the restaurant the customer picks the order up from.
func (s *CheckoutService) ChoosePickupOrg(ctx context.Context, customerID, organizationID string) (*models.CheckoutSession, error) {
	session, err := s.load(ctx, customerID, models.StatePickupOrg)
	if err != nil {
		return nil, err
	}

	orgs, err := s.pos.GetOrganizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	found := false
	for _, org := range orgs {
		if org.ID == organizationID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: unknown organization %q", ErrValidation, organizationID)
	}

	session.OrganizationID = organizationID
	session.State = models.StateTimeSlot
	return session, s.save(ctx, session)
}

// EnterAddressField accepts the input for whichever address part the
// session is waiting on. Collecting the house number triggers the
// serviceability check.
func (s *CheckoutService) EnterAddressField(ctx context.Context, customerID, value string) (*models.CheckoutSession, error) {
	session, err := s.loadAny(ctx, customerID)
	if err != nil {
		return nil, err
	}

	switch session.State {
	case models.StateCity:
		if len([]rune(value)) > maxCityLen {
			return nil, fmt.Errorf("%w: city must be at most %d characters", ErrValidation, maxCityLen)
		}
		session.City = value
	case models.StateStreet:
		if len([]rune(value)) > maxStreetLen {
			return nil, fmt.Errorf("%w: street must be at most %d characters", ErrValidation, maxStreetLen)
		}
		session.Street = value
	case models.StateHouse:
		if len([]rune(value)) > maxHouseLen {
			return nil, fmt.Errorf("%w: house must be at most %d characters", ErrValidation, maxHouseLen)
		}
		session.House = value
		if err := s.checkServiceability(ctx, session); err != nil {
			return nil, err
		}
	case models.StateEntrance, models.StateFloor, models.StateFlat:
		if len([]rune(value)) > maxExtraLen {
			return nil, fmt.Errorf("%w: value must be at most %d characters", ErrValidation, maxExtraLen)
		}
		switch session.State {
		case models.StateEntrance:
			session.Entrance = value
		case models.StateFloor:
			session.Floor = value
		case models.StateFlat:
			session.Flat = value
		}
	case models.StateComment:
		if len([]rune(value)) > maxCommentLen {
			return nil, fmt.Errorf("%w: comment must be at most %d characters", ErrValidation, maxCommentLen)
		}
		session.Comment = value
	default:
		return nil, fmt.Errorf("%w: state %s", ErrWrongState, session.State)
	}

	session.State = models.NextAddressState(session.State)
	return session, s.save(ctx, session)
}

// SkipAddressField skips the optional extra the session is waiting on.
func (s *CheckoutService) SkipAddressField(ctx context.Context, customerID string) (*models.CheckoutSession, error) {
	session, err := s.loadAny(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !models.Skippable(session.State) {
		return nil, fmt.Errorf("%w: state %s cannot be skipped", ErrWrongState, session.State)
	}

	session.State = models.NextAddressState(session.State)
	return session, s.save(ctx, session)
}

// checkServiceability validates the collected address and payable sum
// against the POS delivery restrictions. A rejection is terminal for this
// checkout attempt: the session is destroyed and the delivery-zone map is
// surfaced for display.
func (s *CheckoutService) checkServiceability(ctx context.Context, session *models.CheckoutSession) error {
	payable, err := s.cart.Total(ctx, session.CustomerID)
	if err != nil {
		return err
	}

	orgs, err := s.pos.GetOrganizations(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	orgIDs := make([]string, len(orgs))
	for i, org := range orgs {
		orgIDs[i] = org.ID
	}

	result, err := s.pos.FetchServiceableTerminals(ctx, &iiko.ServiceabilityRequest{
		OrganizationIDs: orgIDs,
		DeliveryAddress: iiko.DeliveryAddress{
			City:       session.City,
			StreetName: session.Street,
			House:      session.House,
		},
		IsCourierDelivery: true,
		DeliverySum:       payable,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	if len(result.AllowedItems) == 0 {
		util.CheckoutNotServiceable.Inc()
		util.CheckoutSessionsAborted.WithLabelValues("not_serviceable").Inc()
		if err := s.sessions.DeleteSession(ctx, session.CustomerID); err != nil {
			s.logger.Warn("Failed to destroy session after serviceability rejection",
				zap.String("customer_id", session.CustomerID),
				zap.Error(err))
		}
		return &NotServiceableError{ZoneMapURL: s.zonesURL}
	}

	allowed := result.AllowedItems[0]
	session.OrganizationID = allowed.OrganizationID
	session.TerminalGroupID = allowed.TerminalGroupID
	session.SurchargeProductID = allowed.DeliveryServiceProductID

	if session.SurchargeProductID != "" {
		// The surcharge product may not be mirrored yet when the
		// serviceability check first names it. Sync so payableSum can
		// price it; a failed sync surfaces later as a stale reference.
		if _, err := s.gate.EnsureFresh(ctx); err != nil {
			s.logger.Warn("Catalog sync after serviceability check failed", zap.Error(err))
		}
	}
	return nil
}

// TimeSlots lists the slots currently offered for the session.
func (s *CheckoutService) TimeSlots(ctx context.Context, customerID string) ([]time.Time, error) {
	if _, err := s.load(ctx, customerID, models.StateTimeSlot); err != nil {
		return nil, err
	}
	now := s.now()
	return BuildTimeSlots(now, now, s.cfg), nil
}

// ChooseTimeSlot fixes the delivery/pickup time and moves on to the bonus
// decision, skipping it when the loyalty balance is zero.
func (s *CheckoutService) ChooseTimeSlot(ctx context.Context, customerID string, slot time.Time) (*models.CheckoutSession, error) {
	session, err := s.load(ctx, customerID, models.StateTimeSlot)
	if err != nil {
		return nil, err
	}

	if !ValidSlot(slot, s.now(), s.cfg) {
		return nil, fmt.Errorf("%w: %s is not an offered time slot", ErrValidation, slot.Format(time.RFC3339))
	}
	session.TimeSlot = slot

	customer, err := s.pos.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	if customer.BonusBalanceMinor() > 0 {
		session.State = models.StateBonus
	} else {
		session.State = models.StatePaymentMethod
	}
	return session, s.save(ctx, session)
}

// DecideBonus records the customer's choice. When the balance covers the
// whole payable sum the order finalizes immediately with bonus-only
// payment; a partial balance is subtracted from the sum passed to the
// payment step.
func (s *CheckoutService) DecideBonus(ctx context.Context, customerID string, useBonus bool) (*CheckoutResult, error) {
	session, err := s.load(ctx, customerID, models.StateBonus)
	if err != nil {
		return nil, err
	}

	if !useBonus {
		session.State = models.StatePaymentMethod
		return &CheckoutResult{Session: session}, s.save(ctx, session)
	}

	session.UseBonus = true

	customer, err := s.pos.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	payable, err := s.payableSum(ctx, session)
	if err != nil {
		return nil, err
	}

	if customer.BonusBalanceMinor() >= payable {
		if err := s.save(ctx, session); err != nil {
			return nil, err
		}
		order, err := s.finalizer.Finalize(ctx, customerID, nil)
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{Order: order}, nil
	}

	session.State = models.StatePaymentMethod
	return &CheckoutResult{
		Session:      session,
		BonusOffered: customer.BonusBalanceMinor(),
	}, s.save(ctx, session)
}

// ChoosePaymentMethod finishes the flow: pay-on-delivery finalizes
// immediately with deferred settlement, online payment creates a gateway
// intent and waits for confirmation.
func (s *CheckoutService) ChoosePaymentMethod(ctx context.Context, customerID, method string) (*CheckoutResult, error) {
	session, err := s.load(ctx, customerID, models.StatePaymentMethod)
	if err != nil {
		return nil, err
	}

	switch method {
	case models.PaymentMethodOnDelivery:
		session.PaymentMethod = method
		if err := s.save(ctx, session); err != nil {
			return nil, err
		}
		order, err := s.finalizer.Finalize(ctx, customerID, nil)
		if err != nil {
			return nil, err
		}
		return &CheckoutResult{Order: order}, nil

	case models.PaymentMethodOnline:
		net, bonus, err := s.netPayable(ctx, session)
		if err != nil {
			return nil, err
		}

		intent, err := s.gateway.CreateIntent(ctx, net, s.returnURL, "Order at AYAMI sushi bar")
		if err != nil {
			return nil, fmt.Errorf("failed to create payment intent: %w", err)
		}

		session.PaymentMethod = method
		session.PaymentIntentID = intent.ID
		// The balance read later at finalize may differ; the amounts
		// settled must be the ones the intent was priced with.
		session.BonusApplied = bonus
		session.State = models.StateAwaitingPayment
		if err := s.save(ctx, session); err != nil {
			return nil, err
		}
		return &CheckoutResult{
			Session:    session,
			PaymentURL: intent.RedirectURL,
			IntentID:   intent.ID,
			PayableSum: net,
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, method)
	}
}

// ConfirmPayment checks that the confirmed intent belongs to this session
// and that the gateway reports success, then finalizes. Mismatch or
// non-success re-prompts without advancing.
func (s *CheckoutService) ConfirmPayment(ctx context.Context, customerID, intentID string) (*CheckoutResult, error) {
	session, err := s.load(ctx, customerID, models.StateAwaitingPayment)
	if err != nil {
		return nil, err
	}

	if intentID != session.PaymentIntentID {
		util.PaymentConfirmFailures.WithLabelValues("mismatch").Inc()
		return nil, ErrPaymentMismatch
	}

	status, err := s.gateway.GetStatus(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check payment: %w", err)
	}
	if status != payment.StatusSucceeded {
		util.PaymentConfirmFailures.WithLabelValues("not_confirmed").Inc()
		return nil, ErrPaymentNotConfirmed
	}

	order, err := s.finalizer.Finalize(ctx, customerID, &PaymentConfirmation{IntentID: intentID})
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{Order: order}, nil
}

// payableSum is the cart total plus the fixed delivery surcharge. A stale
// cart aborts the session.
func (s *CheckoutService) payableSum(ctx context.Context, session *models.CheckoutSession) (int64, error) {
	total, err := s.cart.Total(ctx, session.CustomerID)
	if err != nil {
		return 0, err
	}

	if session.SurchargeProductID != "" {
		surcharge, err := s.products.GetProductByID(ctx, session.SurchargeProductID)
		if err != nil {
			return 0, fmt.Errorf("%w: surcharge product %s", ErrStaleReference, session.SurchargeProductID)
		}
		total += surcharge.Price
	}
	return total, nil
}

// netPayable returns the payable sum minus the bonus to apply, and the
// bonus itself (the loyalty balance capped at the sum).
func (s *CheckoutService) netPayable(ctx context.Context, session *models.CheckoutSession) (int64, int64, error) {
	payable, err := s.payableSum(ctx, session)
	if err != nil {
		return 0, 0, err
	}

	var bonus int64
	if session.UseBonus {
		customer, err := s.pos.GetCustomer(ctx, session.CustomerID)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
		bonus = customer.BonusBalanceMinor()
		if bonus > payable {
			bonus = payable
		}
	}
	return payable - bonus, bonus, nil
}

func (s *CheckoutService) load(ctx context.Context, customerID string, want models.CheckoutState) (*models.CheckoutSession, error) {
	session, err := s.loadAny(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if session.State != want {
		return nil, fmt.Errorf("%w: expected %s, session is at %s", ErrWrongState, want, session.State)
	}
	return session, nil
}

func (s *CheckoutService) loadAny(ctx context.Context, customerID string) (*models.CheckoutSession, error) {
	session, err := s.sessions.GetSession(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoActiveSession
	}
	return session, nil
}

func (s *CheckoutService) save(ctx context.Context, session *models.CheckoutSession) error {
	session.UpdatedAt = s.now()
	return s.sessions.SaveSession(ctx, session, s.cfg.SessionTTL)
}
