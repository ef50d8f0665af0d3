package service

import (
	"context"
	"fmt"
	"time"

	"github.com/QODOHUB/ayami-storefront/internal/iiko"
	"github.com/QODOHUB/ayami-storefront/internal/models"
	"github.com/QODOHUB/ayami-storefront/internal/util"

	"go.uber.org/zap"
)

// CatalogService keeps the local mirror consistent with the POS menu and
// gates reads on catalog freshness.
type CatalogService struct {
	store  CatalogStore
	cursor RevisionCursor
	pos    DeltaFetcher
	logger *zap.Logger
}

// NewCatalogService creates a new catalog mirror service
func NewCatalogService(store CatalogStore, cursor RevisionCursor, pos DeltaFetcher) *CatalogService {
	return &CatalogService{
		store:  store,
		cursor: cursor,
		pos:    pos,
		logger: util.GetLogger(),
	}
}

// EnsureFresh pulls the delta since the cursor, applies it to the mirror
// and advances the cursor. Sync is lazy: it runs on the read that needs the
// guarantee, not on a timer. Concurrent callers may race; upserts are
// idempotent and the cursor advance is monotonic, so duplicate syncs are
// harmless.
//
// On POS failure the last-known cursor is returned together with a
// CatalogUnavailable error: read paths may keep serving stale data, the
// checkout path must treat the error as a hard stop.
func (cs *CatalogService) EnsureFresh(ctx context.Context) (int64, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.EnsureFresh")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CatalogSyncLatency.Observe(time.Since(start).Seconds())
	}()

	cursor, err := cs.cursor.CurrentRevision(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	delta, err := cs.pos.FetchDelta(ctx, cursor)
	if err != nil {
		util.CatalogSyncFailuresTotal.Inc()
		cs.logger.Warn("Catalog delta fetch failed, serving last-known state",
			zap.Int64("cursor", cursor),
			zap.Error(err))
		return cursor, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	// Nothing changed since the cursor.
	if len(delta.Groups) == 0 && len(delta.Products) == 0 {
		return cursor, nil
	}

	if err := cs.applyDelta(ctx, delta); err != nil {
		util.CatalogSyncFailuresTotal.Inc()
		return cursor, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	current, err := cs.cursor.AdvanceRevision(ctx, delta.Revision)
	if err != nil {
		util.CatalogSyncFailuresTotal.Inc()
		return cursor, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	util.CatalogSyncsTotal.Inc()
	util.CatalogRevision.Set(float64(current))
	cs.logger.Info("Catalog delta applied",
		zap.Int64("from", cursor),
		zap.Int64("to", current),
		zap.Int("groups", len(delta.Groups)),
		zap.Int("products", len(delta.Products)))

	return current, nil
}

// IsCurrent reports whether a stamped revision matches the cursor. Callers
// that need a guarantee must run EnsureFresh first in the same operation.
func (cs *CatalogService) IsCurrent(ctx context.Context, stamped int64) (bool, error) {
	current, err := cs.cursor.CurrentRevision(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return stamped == current, nil
}

// MenuGroups lists the visible groups under parentID, or the root groups
// when parentID is empty. A failed sync degrades to the last mirrored
// revision instead of failing the read, as long as one exists.
func (cs *CatalogService) MenuGroups(ctx context.Context, parentID string) ([]models.CatalogGroup, int64, error) {
	revision, err := cs.EnsureFresh(ctx)
	if err != nil && revision == 0 {
		return nil, 0, err
	}

	var groups []models.CatalogGroup
	if parentID == "" {
		groups, err = cs.store.GetRootGroups(ctx, revision)
	} else {
		groups, err = cs.store.GetChildGroups(ctx, parentID, revision)
	}
	if err != nil {
		return nil, 0, err
	}
	return groups, revision, nil
}

// MenuProducts lists the visible products of a group, with the same
// staleness tolerance as MenuGroups.
func (cs *CatalogService) MenuProducts(ctx context.Context, groupID string) ([]models.CatalogProduct, int64, error) {
	revision, err := cs.EnsureFresh(ctx)
	if err != nil && revision == 0 {
		return nil, 0, err
	}

	products, err := cs.store.GetProductsByGroup(ctx, groupID, revision)
	if err != nil {
		return nil, 0, err
	}
	return products, revision, nil
}

func (cs *CatalogService) applyDelta(ctx context.Context, delta *iiko.DeltaResult) error {
	allGroups := make(map[string]iiko.DeltaGroup, len(delta.Groups))
	retained := make(map[string]bool, len(delta.Groups))
	for _, g := range delta.Groups {
		allGroups[g.ID] = g
		if keepGroup(g) {
			retained[g.ID] = true
		}
	}

	for _, g := range delta.Groups {
		if !retained[g.ID] {
			continue
		}

		group := &models.CatalogGroup{
			ID:       g.ID,
			Name:     g.Name,
			ParentID: resolveAncestor(g.ParentGroup, allGroups, retained),
			Revision: delta.Revision,
			Included: true,
		}
		if len(g.ImageLinks) > 0 {
			group.ImageLink = g.ImageLinks[0]
		}

		if err := cs.store.UpsertGroup(ctx, group); err != nil {
			return fmt.Errorf("failed to upsert group %s: %w", g.ID, err)
		}
	}

	for _, p := range delta.Products {
		if !keepProduct(p) {
			continue
		}

		groupID := resolveAncestor(p.GroupID, allGroups, retained)
		if groupID == nil {
			// A sellable product must hang off some visible group.
			cs.logger.Warn("Product without a visible group skipped",
				zap.String("product_id", p.ID))
			continue
		}

		product := &models.CatalogProduct{
			ID:          p.ID,
			GroupID:     *groupID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.CurrentPriceMinor(),
			Revision:    delta.Revision,
			Included:    true,
		}
		if len(p.ImageLinks) > 0 {
			product.ImageLink = p.ImageLinks[0]
		}

		if err := cs.store.UpsertProduct(ctx, product); err != nil {
			return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
		}
	}

	return nil
}

func keepGroup(g iiko.DeltaGroup) bool {
	return !g.IsDeleted && g.IsIncludedInMenu && !g.IsGroupModifier
}

func keepProduct(p iiko.DeltaProduct) bool {
	if p.IsDeleted || !p.IsIncludedInMenu {
		return false
	}
	return p.Type == "Dish" || p.Type == "Good"
}

// resolveAncestor walks the parent chain until it hits a group retained in
// this delta. A parent missing from the delta entirely is assumed to be
// mirrored already and kept as-is; a filtered-out parent falls through to
// its own ancestor.
func resolveAncestor(parentID *string, all map[string]iiko.DeltaGroup, retained map[string]bool) *string {
	for parentID != nil {
		if retained[*parentID] {
			return parentID
		}
		parent, inDelta := all[*parentID]
		if !inDelta {
			return parentID
		}
		parentID = parent.ParentGroup
	}
	return nil
}
