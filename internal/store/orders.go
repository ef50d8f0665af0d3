package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/QODOHUB/ayami-storefront/internal/models"
)

// CreateOrderTx persists an order with its lines and clears the customer's
// cart in one transaction. Partial application is a correctness violation,
// so the three writes always commit or roll back together.
func (s *Store) CreateOrderTx(ctx context.Context, order *models.Order, lines []models.OrderLine) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (id, customer_id, total_amount, bonus_amount, surcharge_amount, service_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	if err := tx.GetContext(ctx, &order.CreatedAt, query,
		order.ID, order.CustomerID, order.TotalAmount, order.BonusAmount,
		order.SurchargeAmount, order.ServiceType, order.Status); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range lines {
		lines[i].OrderID = order.ID
		err := tx.GetContext(ctx, &lines[i].ID,
			`INSERT INTO order_line (order_id, product_id, quantity, unit_price)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			lines[i].OrderID, lines[i].ProductID, lines[i].Quantity, lines[i].UnitPrice)
		if err != nil {
			return fmt.Errorf("failed to insert order line: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM cart_line WHERE customer_id = $1", order.CustomerID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderLines retrieves all lines for an order
func (s *Store) GetOrderLines(ctx context.Context, orderID string) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := s.db.SelectContext(ctx, &lines,
		"SELECT * FROM order_line WHERE order_id = $1 ORDER BY id", orderID)
	return lines, err
}

// GetOrdersByCustomer retrieves orders for a customer, newest first
func (s *Store) GetOrdersByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
	return orders, err
}

// MarkOrderSubmitted records the external id after the POS accepts the order
func (s *Store) MarkOrderSubmitted(ctx context.Context, orderID, externalID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, external_id = $2 WHERE id = $3",
		models.OrderStatusSubmitted, externalID, orderID)
	return err
}

// GetPendingSubmissions retrieves orders not yet accepted by the POS
func (s *Store) GetPendingSubmissions(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE status = $1 ORDER BY created_at LIMIT $2",
		models.OrderStatusPendingSubmission, limit)
	return orders, err
}
