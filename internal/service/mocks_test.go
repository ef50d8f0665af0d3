package service

import (
	"context"
	"errors"
	"time"

	"github.com/QODOHUB/ayami-storefront/internal/iiko"
	"github.com/QODOHUB/ayami-storefront/internal/models"
	"github.com/QODOHUB/ayami-storefront/internal/payment"
)

// mockCatalogStore implements CatalogStore for testing
type mockCatalogStore struct {
	Groups   map[string]*models.CatalogGroup
	Products map[string]*models.CatalogProduct
	Err      error
}

func newMockCatalogStore() *mockCatalogStore {
	return &mockCatalogStore{
		Groups:   make(map[string]*models.CatalogGroup),
		Products: make(map[string]*models.CatalogProduct),
	}
}

func (m *mockCatalogStore) UpsertGroup(_ context.Context, g *models.CatalogGroup) error {
	if m.Err != nil {
		return m.Err
	}
	// Mirror the monotonic upsert: lower revisions never overwrite.
	if existing, ok := m.Groups[g.ID]; ok && existing.Revision >= g.Revision {
		return nil
	}
	cp := *g
	m.Groups[g.ID] = &cp
	return nil
}

func (m *mockCatalogStore) UpsertProduct(_ context.Context, p *models.CatalogProduct) error {
	if m.Err != nil {
		return m.Err
	}
	if existing, ok := m.Products[p.ID]; ok && existing.Revision >= p.Revision {
		return nil
	}
	cp := *p
	m.Products[p.ID] = &cp
	return nil
}

func (m *mockCatalogStore) GetProductByID(_ context.Context, id string) (*models.CatalogProduct, error) {
	p, ok := m.Products[id]
	if !ok {
		return nil, errors.New("product not found")
	}
	return p, nil
}

func (m *mockCatalogStore) GetRootGroups(_ context.Context, revision int64) ([]models.CatalogGroup, error) {
	var out []models.CatalogGroup
	for _, g := range m.Groups {
		if g.ParentID == nil && g.Revision == revision && g.Included {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (m *mockCatalogStore) GetChildGroups(_ context.Context, parentID string, revision int64) ([]models.CatalogGroup, error) {
	var out []models.CatalogGroup
	for _, g := range m.Groups {
		if g.ParentID != nil && *g.ParentID == parentID && g.Revision == revision && g.Included {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (m *mockCatalogStore) GetProductsByGroup(_ context.Context, groupID string, revision int64) ([]models.CatalogProduct, error) {
	var out []models.CatalogProduct
	for _, p := range m.Products {
		if p.GroupID == groupID && p.Revision == revision && p.Included {
			out = append(out, *p)
		}
	}
	return out, nil
}

// mockCursor implements RevisionCursor for testing
type mockCursor struct {
	Revision int64
	Err      error
}

func (m *mockCursor) CurrentRevision(_ context.Context) (int64, error) {
	return m.Revision, m.Err
}

func (m *mockCursor) AdvanceRevision(_ context.Context, revision int64) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	if revision > m.Revision {
		m.Revision = revision
	}
	return m.Revision, nil
}

// mockDeltaFetcher implements DeltaFetcher for testing
type mockDeltaFetcher struct {
	Delta *iiko.DeltaResult
	Err   error
	Calls int
}

func (m *mockDeltaFetcher) FetchDelta(_ context.Context, _ int64) (*iiko.DeltaResult, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Delta, nil
}

// mockGate implements FreshnessGate for testing
type mockGate struct {
	Revision int64
	Err      error
}

func (m *mockGate) EnsureFresh(_ context.Context) (int64, error) {
	return m.Revision, m.Err
}

// mockCartStore implements CartStore for testing
type mockCartStore struct {
	Items    []models.CartItem
	Purged   int64
	PurgeErr error
	nextID   int64
}

func (m *mockCartStore) find(customerID, productID string) *models.CartItem {
	for i := range m.Items {
		if m.Items[i].Line.CustomerID == customerID && m.Items[i].Line.ProductID == productID {
			return &m.Items[i]
		}
	}
	return nil
}

func (m *mockCartStore) GetCartLine(_ context.Context, customerID, productID string) (*models.CartLine, error) {
	if item := m.find(customerID, productID); item != nil {
		line := item.Line
		return &line, nil
	}
	return nil, nil
}

func (m *mockCartStore) UpsertCartLine(_ context.Context, customerID, productID string, delta int) (*models.CartLine, error) {
	if item := m.find(customerID, productID); item != nil {
		item.Line.Quantity += delta
		line := item.Line
		return &line, nil
	}
	m.nextID++
	item := models.CartItem{
		Line: models.CartLine{
			ID:         m.nextID,
			CustomerID: customerID,
			ProductID:  productID,
			Quantity:   delta,
		},
	}
	m.Items = append(m.Items, item)
	return &item.Line, nil
}

func (m *mockCartStore) SetCartQuantity(_ context.Context, customerID, productID string, qty int) error {
	if item := m.find(customerID, productID); item != nil {
		item.Line.Quantity = qty
	}
	return nil
}

func (m *mockCartStore) DeleteCartLine(_ context.Context, customerID, productID string) error {
	for i := range m.Items {
		if m.Items[i].Line.CustomerID == customerID && m.Items[i].Line.ProductID == productID {
			m.Items = append(m.Items[:i], m.Items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockCartStore) ListCartItems(_ context.Context, customerID string) ([]models.CartItem, error) {
	var out []models.CartItem
	for _, item := range m.Items {
		if item.Line.CustomerID == customerID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *mockCartStore) PurgeStaleCartLines(_ context.Context, customerID string, revision int64) (int64, error) {
	if m.PurgeErr != nil {
		return 0, m.PurgeErr
	}
	var kept []models.CartItem
	var purged int64
	for _, item := range m.Items {
		if item.Line.CustomerID == customerID && (item.Product.Revision != revision || !item.Product.Included) {
			purged++
			continue
		}
		kept = append(kept, item)
	}
	m.Items = kept
	m.Purged += purged
	return purged, nil
}

// mockSessionStore implements SessionStore for testing
type mockSessionStore struct {
	Sessions map[string]*models.CheckoutSession
	LastTTL  time.Duration
	Err      error
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{Sessions: make(map[string]*models.CheckoutSession)}
}

func (m *mockSessionStore) SaveSession(_ context.Context, session *models.CheckoutSession, ttl time.Duration) error {
	if m.Err != nil {
		return m.Err
	}
	cp := *session
	m.Sessions[session.CustomerID] = &cp
	m.LastTTL = ttl
	return nil
}

func (m *mockSessionStore) GetSession(_ context.Context, customerID string) (*models.CheckoutSession, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	s, ok := m.Sessions[customerID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *mockSessionStore) DeleteSession(_ context.Context, customerID string) error {
	delete(m.Sessions, customerID)
	return nil
}

// mockLocker implements Locker for testing
type mockLocker struct {
	Held map[string]bool
	Err  error
}

func newMockLocker() *mockLocker {
	return &mockLocker{Held: make(map[string]bool)}
}

func (m *mockLocker) AcquireLock(_ context.Context, lockKey string, _ time.Duration) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	if m.Held[lockKey] {
		return false, nil
	}
	m.Held[lockKey] = true
	return true, nil
}

func (m *mockLocker) ReleaseLock(_ context.Context, lockKey string) error {
	delete(m.Held, lockKey)
	return nil
}

// mockPOS implements POSClient and ProfileClient for testing
type mockPOS struct {
	Serviceability    *iiko.ServiceabilityResult
	ServiceabilityErr error
	ServiceabilityReq *iiko.ServiceabilityRequest

	Customer    *iiko.CustomerInfo
	CustomerErr error

	Orgs    []iiko.Organization
	OrgsErr error

	ExternalID    string
	DeliveryErr   error
	DeliveryCalls int
	DeliveryReq   *iiko.DeliveryCreateRequest

	UpsertedProfile *iiko.CreateOrUpdateCustomerRequest
}

func (m *mockPOS) FetchServiceableTerminals(_ context.Context, req *iiko.ServiceabilityRequest) (*iiko.ServiceabilityResult, error) {
	m.ServiceabilityReq = req
	if m.ServiceabilityErr != nil {
		return nil, m.ServiceabilityErr
	}
	return m.Serviceability, nil
}

func (m *mockPOS) GetCustomer(_ context.Context, _ string) (*iiko.CustomerInfo, error) {
	if m.CustomerErr != nil {
		return nil, m.CustomerErr
	}
	return m.Customer, nil
}

func (m *mockPOS) GetOrganizations(_ context.Context) ([]iiko.Organization, error) {
	if m.OrgsErr != nil {
		return nil, m.OrgsErr
	}
	return m.Orgs, nil
}

func (m *mockPOS) CreateDelivery(_ context.Context, req *iiko.DeliveryCreateRequest) (string, error) {
	m.DeliveryCalls++
	m.DeliveryReq = req
	if m.DeliveryErr != nil {
		return "", m.DeliveryErr
	}
	return m.ExternalID, nil
}

func (m *mockPOS) CreateOrUpdateCustomer(_ context.Context, req *iiko.CreateOrUpdateCustomerRequest) (string, error) {
	if m.CustomerErr != nil {
		return "", m.CustomerErr
	}
	m.UpsertedProfile = req
	return req.ID, nil
}

// mockGateway implements PaymentGateway for testing
type mockGateway struct {
	Intent    *payment.Intent
	IntentErr error
	Status    payment.Status
	StatusErr error

	RequestedAmount int64
}

func (m *mockGateway) CreateIntent(_ context.Context, amountMinor int64, _, _ string) (*payment.Intent, error) {
	m.RequestedAmount = amountMinor
	if m.IntentErr != nil {
		return nil, m.IntentErr
	}
	return m.Intent, nil
}

func (m *mockGateway) GetStatus(_ context.Context, _ string) (payment.Status, error) {
	if m.StatusErr != nil {
		return "", m.StatusErr
	}
	return m.Status, nil
}

// mockOrderStore implements OrderStore for testing. Like the real store,
// a successful CreateOrderTx also clears the customer's cart.
type mockOrderStore struct {
	Cart         *mockCartStore
	CreatedOrder *models.Order
	CreatedLines []models.OrderLine
	CreateErr    error
	CreateCalls  int

	SubmittedOrderID string
	SubmittedExtID   string
	MarkErr          error
}

func (m *mockOrderStore) CreateOrderTx(_ context.Context, order *models.Order, lines []models.OrderLine) error {
	m.CreateCalls++
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.CreatedOrder = order
	m.CreatedLines = lines
	if m.Cart != nil {
		var kept []models.CartItem
		for _, item := range m.Cart.Items {
			if item.Line.CustomerID != order.CustomerID {
				kept = append(kept, item)
			}
		}
		m.Cart.Items = kept
	}
	return nil
}

func (m *mockOrderStore) MarkOrderSubmitted(_ context.Context, orderID, externalID string) error {
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.SubmittedOrderID = orderID
	m.SubmittedExtID = externalID
	return nil
}

// mockPublisher implements FinalizePublisher for testing
type mockPublisher struct {
	Finalized []*models.OrderFinalizedEvent
	Failed    []*models.SubmissionFailedEvent
	Submitted []*models.OrderSubmittedEvent
}

func (m *mockPublisher) PublishOrderFinalized(_ context.Context, event *models.OrderFinalizedEvent) error {
	m.Finalized = append(m.Finalized, event)
	return nil
}

func (m *mockPublisher) PublishSubmissionFailed(_ context.Context, event *models.SubmissionFailedEvent) error {
	m.Failed = append(m.Failed, event)
	return nil
}

func (m *mockPublisher) PublishOrderSubmitted(_ context.Context, event *models.OrderSubmittedEvent) error {
	m.Submitted = append(m.Submitted, event)
	return nil
}
