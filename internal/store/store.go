package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/QODOHUB/ayami-storefront/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// UpsertGroup writes a mirrored group, stamping it with the delta revision.
// A replayed or older delta never downgrades the stored stamp.
func (s *Store) UpsertGroup(ctx context.Context, g *models.CatalogGroup) error {
	query := `
		INSERT INTO product_group (id, name, image_link, parent_id, revision, included, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			image_link = EXCLUDED.image_link,
			parent_id = EXCLUDED.parent_id,
			revision = EXCLUDED.revision,
			included = EXCLUDED.included,
			updated_at = NOW()
		WHERE product_group.revision < EXCLUDED.revision`

	_, err := s.db.ExecContext(ctx, query,
		g.ID, g.Name, g.ImageLink, g.ParentID, g.Revision, g.Included)
	return err
}

// UpsertProduct writes a mirrored product, stamping it with the delta
// revision. Older stamps are never overwritten.
func (s *Store) UpsertProduct(ctx context.Context, p *models.CatalogProduct) error {
	query := `
		INSERT INTO product (id, group_id, name, description, price, image_link, revision, included, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO UPDATE SET
			group_id = EXCLUDED.group_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			image_link = EXCLUDED.image_link,
			revision = EXCLUDED.revision,
			included = EXCLUDED.included,
			updated_at = NOW()
		WHERE product.revision < EXCLUDED.revision`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.GroupID, p.Name, p.Description, p.Price, p.ImageLink, p.Revision, p.Included)
	return err
}

// GetGroupByID retrieves a mirrored group
func (s *Store) GetGroupByID(ctx context.Context, id string) (*models.CatalogGroup, error) {
	var group models.CatalogGroup
	err := s.db.GetContext(ctx, &group, "SELECT * FROM product_group WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// GetRootGroups retrieves top-level groups at the given revision
func (s *Store) GetRootGroups(ctx context.Context, revision int64) ([]models.CatalogGroup, error) {
	var groups []models.CatalogGroup
	err := s.db.SelectContext(ctx, &groups,
		"SELECT * FROM product_group WHERE parent_id IS NULL AND revision = $1 AND included ORDER BY name",
		revision)
	return groups, err
}

// GetChildGroups retrieves subgroups of a group at the given revision
func (s *Store) GetChildGroups(ctx context.Context, parentID string, revision int64) ([]models.CatalogGroup, error) {
	var groups []models.CatalogGroup
	err := s.db.SelectContext(ctx, &groups,
		"SELECT * FROM product_group WHERE parent_id = $1 AND revision = $2 AND included ORDER BY name",
		parentID, revision)
	return groups, err
}

// GetProductByID retrieves a mirrored product
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.CatalogProduct, error) {
	var product models.CatalogProduct
	err := s.db.GetContext(ctx, &product, "SELECT * FROM product WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByGroup retrieves a group's products at the given revision
func (s *Store) GetProductsByGroup(ctx context.Context, groupID string, revision int64) ([]models.CatalogProduct, error) {
	var products []models.CatalogProduct
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM product WHERE group_id = $1 AND revision = $2 AND included ORDER BY name",
		groupID, revision)
	return products, err
}
