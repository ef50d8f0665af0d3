package store

import (
	"context"
	"database/sql"

	"github.com/QODOHUB/ayami-storefront/internal/models"
)

type cartItemRow struct {
	LineID     int64  `db:"line_id"`
	CustomerID string `db:"customer_id"`
	Quantity   int    `db:"quantity"`
	models.CatalogProduct
}

// GetCartLine retrieves the customer's cart line for a product, nil when
// there is none.
func (s *Store) GetCartLine(ctx context.Context, customerID, productID string) (*models.CartLine, error) {
	var line models.CartLine
	err := s.db.GetContext(ctx, &line,
		"SELECT * FROM cart_line WHERE customer_id = $1 AND product_id = $2",
		customerID, productID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// UpsertCartLine inserts a cart line or adds delta to an existing quantity.
func (s *Store) UpsertCartLine(ctx context.Context, customerID, productID string, delta int) (*models.CartLine, error) {
	var line models.CartLine
	query := `
		INSERT INTO cart_line (customer_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (customer_id, product_id)
		DO UPDATE SET quantity = cart_line.quantity + EXCLUDED.quantity
		RETURNING id, customer_id, product_id, quantity`

	err := s.db.GetContext(ctx, &line, query, customerID, productID, delta)
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// SetCartQuantity sets an absolute quantity on an existing cart line.
func (s *Store) SetCartQuantity(ctx context.Context, customerID, productID string, qty int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE cart_line SET quantity = $1 WHERE customer_id = $2 AND product_id = $3",
		qty, customerID, productID)
	return err
}

// DeleteCartLine removes a single cart line.
func (s *Store) DeleteCartLine(ctx context.Context, customerID, productID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_line WHERE customer_id = $1 AND product_id = $2",
		customerID, productID)
	return err
}

// ClearCart removes every cart line of a customer.
func (s *Store) ClearCart(ctx context.Context, customerID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_line WHERE customer_id = $1", customerID)
	return err
}

// ListCartItems returns the customer's cart lines joined with their
// products, in insertion order. Staleness filtering is the caller's job;
// this returns whatever is stored.
func (s *Store) ListCartItems(ctx context.Context, customerID string) ([]models.CartItem, error) {
	query := `
		SELECT cl.id AS line_id, cl.customer_id, cl.quantity,
		       p.id, p.group_id, p.name, p.description, p.price,
		       p.image_link, p.revision, p.included, p.updated_at
		FROM cart_line cl
		JOIN product p ON p.id = cl.product_id
		WHERE cl.customer_id = $1
		ORDER BY cl.id`

	var rows []cartItemRow
	if err := s.db.SelectContext(ctx, &rows, query, customerID); err != nil {
		return nil, err
	}

	items := make([]models.CartItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, models.CartItem{
			Line: models.CartLine{
				ID:         row.LineID,
				CustomerID: row.CustomerID,
				ProductID:  row.CatalogProduct.ID,
				Quantity:   row.Quantity,
			},
			Product: row.CatalogProduct,
		})
	}
	return items, nil
}

// PurgeStaleCartLines deletes lines whose product is missing from the
// mirror or stamped with a revision other than the given one. Returns the
// number of purged lines.
func (s *Store) PurgeStaleCartLines(ctx context.Context, customerID string, revision int64) (int64, error) {
	query := `
		DELETE FROM cart_line cl
		WHERE cl.customer_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM product p
			WHERE p.id = cl.product_id AND p.revision = $2 AND p.included
		  )`

	result, err := s.db.ExecContext(ctx, query, customerID, revision)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
