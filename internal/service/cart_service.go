package service

import (
	"context"
	"fmt"

	"github.com/QODOHUB/ayami-storefront/internal/models"
	"github.com/QODOHUB/ayami-storefront/internal/util"

	"go.uber.org/zap"
)

// CartService manages per-customer cart lines. Every read that joins a
// line to its product drops lines whose stamped revision no longer matches
// the mirror; callers never see stale lines.
type CartService struct {
	store    CartStore
	products CatalogStore
	gate     FreshnessGate
	logger   *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store CartStore, products CatalogStore, gate FreshnessGate) *CartService {
	return &CartService{
		store:    store,
		products: products,
		gate:     gate,
		logger:   util.GetLogger(),
	}
}

// AddOrIncrement adds a product to the cart or bumps its quantity by one.
// A product missing from the mirror or stamped with an old revision yields
// ErrStaleReference so the caller re-renders from a fresh List.
func (cs *CartService) AddOrIncrement(ctx context.Context, customerID, productID string) (*models.CartLine, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddOrIncrement")
	defer span.End()

	revision, err := cs.gate.EnsureFresh(ctx)
	if err != nil {
		return nil, err
	}

	product, err := cs.products.GetProductByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("%w: product %s", ErrStaleReference, productID)
	}
	if product.Revision != revision || !product.Included {
		return nil, fmt.Errorf("%w: product %s is at revision %d, current is %d",
			ErrStaleReference, productID, product.Revision, revision)
	}

	return cs.store.UpsertCartLine(ctx, customerID, productID, 1)
}

// SetQuantity sets an absolute quantity; zero or less deletes the line.
// Deleting a line that does not exist reports ErrCartLineNotFound instead
// of going negative.
func (cs *CartService) SetQuantity(ctx context.Context, customerID, productID string, qty int) error {
	ctx, span := util.StartSpan(ctx, "CartService.SetQuantity")
	defer span.End()

	line, err := cs.store.GetCartLine(ctx, customerID, productID)
	if err != nil {
		return err
	}

	if qty <= 0 {
		if line == nil {
			return ErrCartLineNotFound
		}
		if err := cs.store.DeleteCartLine(ctx, customerID, productID); err != nil {
			return err
		}
		if qty < 0 {
			return ErrCartLineNotFound
		}
		return nil
	}

	revision, err := cs.gate.EnsureFresh(ctx)
	if err != nil {
		return err
	}
	product, err := cs.products.GetProductByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("%w: product %s", ErrStaleReference, productID)
	}
	if product.Revision != revision || !product.Included {
		return fmt.Errorf("%w: product %s", ErrStaleReference, productID)
	}

	if line == nil {
		_, err := cs.store.UpsertCartLine(ctx, customerID, productID, qty)
		return err
	}
	return cs.store.SetCartQuantity(ctx, customerID, productID, qty)
}

// List returns the customer's cart in insertion order with stale lines
// dropped. Dropped lines are purged from storage opportunistically.
func (cs *CartService) List(ctx context.Context, customerID string) ([]models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.List")
	defer span.End()

	revision, err := cs.gate.EnsureFresh(ctx)
	if err != nil && revision == 0 {
		return nil, err
	}

	items, err := cs.store.ListCartItems(ctx, customerID)
	if err != nil {
		return nil, err
	}

	fresh := items[:0]
	stale := 0
	for _, item := range items {
		if item.Product.Revision == revision && item.Product.Included {
			fresh = append(fresh, item)
		} else {
			stale++
		}
	}

	if stale > 0 {
		util.CartStaleLinesPurged.Add(float64(stale))
		if purged, err := cs.store.PurgeStaleCartLines(ctx, customerID, revision); err != nil {
			cs.logger.Warn("Failed to purge stale cart lines",
				zap.String("customer_id", customerID),
				zap.Error(err))
		} else {
			cs.logger.Info("Purged stale cart lines",
				zap.String("customer_id", customerID),
				zap.Int64("purged", purged))
		}
	}

	return fresh, nil
}

// Total returns the payable cart sum in minor units.
func (cs *CartService) Total(ctx context.Context, customerID string) (int64, error) {
	items, err := cs.List(ctx, customerID)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total, nil
}
