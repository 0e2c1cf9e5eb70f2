package orders

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/pricing"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists the order with its priced items, reserves stock for each
// item, computes the order total, and consumes the source cart, all in one
// transaction. Stock reservation uses a conditional update so concurrent
// checkouts cannot oversell.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order, cartID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	order.Status = domain.OrderStatusPending
	order.IsPaid = false

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, vendor_id, total_price, is_paid, status, created_at, updated_at)
		VALUES ($1, $2, $3, NULL, false, $4, $5, $5)
	`, order.ID, order.UserID, order.VendorID, order.Status, now)
	if err != nil {
		return err
	}

	lines := make([]pricing.LineItem, 0, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		item.ID = uuid.New().String()
		item.OrderID = order.ID

		result, err := tx.ExecContext(ctx, `
			UPDATE products SET stock = stock - $2
			WHERE id = $1 AND stock >= $2
		`, item.ProductID, item.Quantity)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrInsufficientStock
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, variant_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, item.ID, item.OrderID, item.ProductID, item.VariantID,
			item.Quantity, item.Price); err != nil {
			return err
		}

		lines = append(lines, pricing.LineItem{Quantity: item.Quantity, Price: item.Price})
	}

	total := pricing.OrderTotal(lines)
	order.TotalPrice.Decimal = total
	order.TotalPrice.Valid = true

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET total_price = $1 WHERE id = $2`, total, order.ID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM carts WHERE id = $1`, cartID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, vendor_id, total_price, is_paid, status, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.UserID, &order.VendorID, &order.TotalPrice,
		&order.IsPaid, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	items, err := r.itemsByOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func (r *OrderRepository) itemsByOrder(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, variant_id, quantity, price
		FROM order_items
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID,
			&item.VariantID, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, vendor_id, total_price, is_paid, status, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.UserID, &order.VendorID, &order.TotalPrice,
			&order.IsPaid, &order.Status, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// UpdateStatus transitions the order and, when the order is cancelled,
// returns the reserved stock to its products. The stock release runs only
// on the first transition into CANCELLED.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var previous domain.OrderStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE id = $1`, id).Scan(&previous)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, status, id); err != nil {
		return nil, err
	}

	if status == domain.OrderStatusCancelled && previous != domain.OrderStatusCancelled {
		if _, err := tx.ExecContext(ctx, `
			UPDATE products p
			SET stock = stock + i.quantity
			FROM order_items i
			WHERE i.order_id = $1 AND i.product_id = p.id
		`, id); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// RecomputeTotal rereads the order's items and rewrites the stored total
// inside one transaction. Failures surface as a RecomputeError; the stale
// total is left untouched in that case.
func (r *OrderRepository) RecomputeTotal(ctx context.Context, id string) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &domain.RecomputeError{Entity: "order", ID: id, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return nil, &domain.RecomputeError{Entity: "order", ID: id, Err: err}
	}
	if !exists {
		return nil, &domain.RecomputeError{Entity: "order", ID: id, Err: domain.ErrNotFound}
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT quantity, price FROM order_items WHERE order_id = $1`, id)
	if err != nil {
		return nil, &domain.RecomputeError{Entity: "order", ID: id, Err: err}
	}

	lines := []pricing.LineItem{}
	for rows.Next() {
		var line pricing.LineItem
		if err := rows.Scan(&line.Quantity, &line.Price); err != nil {
			_ = rows.Close()
			return nil, &domain.RecomputeError{Entity: "order", ID: id, Err: err}
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.RecomputeError{Entity: "order", ID: id, Err: err}
	}
	_ = rows.Close()

	total := pricing.OrderTotal(lines)

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET total_price = $1, updated_at = NOW() WHERE id = $2`, total, id); err != nil {
		return nil, &domain.RecomputeError{Entity: "order", ID: id, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &domain.RecomputeError{Entity: "order", ID: id, Err: err}
	}

	return r.GetByID(ctx, id)
}
