package service

import (
	"context"
	"time"

	"github.com/QODOHUB/ayami-storefront/internal/iiko"
	"github.com/QODOHUB/ayami-storefront/internal/models"
	"github.com/QODOHUB/ayami-storefront/internal/payment"
)

// CatalogStore persists mirrored catalog records.
type CatalogStore interface {
	UpsertGroup(ctx context.Context, g *models.CatalogGroup) error
	UpsertProduct(ctx context.Context, p *models.CatalogProduct) error
	GetProductByID(ctx context.Context, id string) (*models.CatalogProduct, error)
	GetRootGroups(ctx context.Context, revision int64) ([]models.CatalogGroup, error)
	GetChildGroups(ctx context.Context, parentID string, revision int64) ([]models.CatalogGroup, error)
	GetProductsByGroup(ctx context.Context, groupID string, revision int64) ([]models.CatalogProduct, error)
}

// RevisionCursor is the persisted "highest fully applied revision" value.
type RevisionCursor interface {
	CurrentRevision(ctx context.Context) (int64, error)
	AdvanceRevision(ctx context.Context, revision int64) (int64, error)
}

// DeltaFetcher pulls catalog deltas from the POS.
type DeltaFetcher interface {
	FetchDelta(ctx context.Context, sinceRevision int64) (*iiko.DeltaResult, error)
}

// FreshnessGate guarantees the mirror is current before a money- or
// availability-relevant read.
type FreshnessGate interface {
	EnsureFresh(ctx context.Context) (int64, error)
}

// CartStore persists cart lines.
type CartStore interface {
	GetCartLine(ctx context.Context, customerID, productID string) (*models.CartLine, error)
	UpsertCartLine(ctx context.Context, customerID, productID string, delta int) (*models.CartLine, error)
	SetCartQuantity(ctx context.Context, customerID, productID string, qty int) error
	DeleteCartLine(ctx context.Context, customerID, productID string) error
	ListCartItems(ctx context.Context, customerID string) ([]models.CartItem, error)
	PurgeStaleCartLines(ctx context.Context, customerID string, revision int64) (int64, error)
}

// SessionStore persists checkout sessions with an idle TTL.
type SessionStore interface {
	SaveSession(ctx context.Context, session *models.CheckoutSession, ttl time.Duration) error
	GetSession(ctx context.Context, customerID string) (*models.CheckoutSession, error)
	DeleteSession(ctx context.Context, customerID string) error
}

// Locker provides customer-scoped critical sections.
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// POSClient is the slice of the external client the checkout flow needs.
type POSClient interface {
	FetchServiceableTerminals(ctx context.Context, req *iiko.ServiceabilityRequest) (*iiko.ServiceabilityResult, error)
	GetCustomer(ctx context.Context, id string) (*iiko.CustomerInfo, error)
	GetOrganizations(ctx context.Context) ([]iiko.Organization, error)
	CreateDelivery(ctx context.Context, req *iiko.DeliveryCreateRequest) (string, error)
}

// ProfileClient is the slice of the external client the profile flow needs.
type ProfileClient interface {
	GetCustomer(ctx context.Context, id string) (*iiko.CustomerInfo, error)
	CreateOrUpdateCustomer(ctx context.Context, req *iiko.CreateOrUpdateCustomerRequest) (string, error)
}

// PaymentGateway is the payment coordinator boundary.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amountMinor int64, returnURL, description string) (*payment.Intent, error)
	GetStatus(ctx context.Context, intentID string) (payment.Status, error)
}

// OrderStore persists finalized orders. CreateOrderTx writes the order
// with its lines and clears the customer's cart in the same transaction.
type OrderStore interface {
	CreateOrderTx(ctx context.Context, order *models.Order, lines []models.OrderLine) error
	MarkOrderSubmitted(ctx context.Context, orderID, externalID string) error
}

// FinalizePublisher emits order lifecycle events for reconciliation.
type FinalizePublisher interface {
	PublishOrderFinalized(ctx context.Context, event *models.OrderFinalizedEvent) error
	PublishSubmissionFailed(ctx context.Context, event *models.SubmissionFailedEvent) error
	PublishOrderSubmitted(ctx context.Context, event *models.OrderSubmittedEvent) error
}
