package carts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/marketplace/internal/domain"
)

// ErrVariantMismatch is returned when a cart item's variant belongs to a
// different product than the item references.
var ErrVariantMismatch = errors.New("variant does not belong to product")

type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) Create(ctx context.Context, cart *domain.Cart) error {
	cart.ID = uuid.New().String()
	now := time.Now().UTC()
	cart.CreatedAt = now
	cart.UpdatedAt = now
	cart.Items = []domain.CartItem{}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO carts (id, user_id, vendor_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, cart.ID, cart.UserID, cart.VendorID, now)
	return err
}

func (r *CartRepository) GetByID(ctx context.Context, id string) (*domain.Cart, error) {
	cart := &domain.Cart{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, vendor_id, created_at, updated_at
		FROM carts
		WHERE id = $1
	`, id).Scan(&cart.ID, &cart.UserID, &cart.VendorID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, cart_id, product_id, variant_id, quantity
		FROM cart_items
		WHERE cart_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cart.Items = []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID,
			&item.VariantID, &item.Quantity); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cart, nil
}

// AddItem inserts a cart item after checking that the product belongs to
// the cart's vendor and, when a variant is given, that the variant belongs
// to the product. The offending write is blocked, not logged away.
func (r *CartRepository) AddItem(ctx context.Context, item *domain.CartItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var cartVendorID string
	err = tx.QueryRowContext(ctx,
		`SELECT vendor_id FROM carts WHERE id = $1`, item.CartID).Scan(&cartVendorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		return err
	}

	var productVendorID string
	err = tx.QueryRowContext(ctx,
		`SELECT vendor_id FROM products WHERE id = $1`, item.ProductID).Scan(&productVendorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		return err
	}

	if cartVendorID != productVendorID {
		return domain.ErrVendorMismatch
	}

	if item.VariantID != nil {
		var variantProductID string
		err = tx.QueryRowContext(ctx,
			`SELECT product_id FROM product_variants WHERE id = $1`, *item.VariantID).Scan(&variantProductID)
		if err != nil {
			if err == sql.ErrNoRows {
				return domain.ErrNotFound
			}
			return err
		}
		if variantProductID != item.ProductID {
			return ErrVariantMismatch
		}
	}

	item.ID = uuid.New().String()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, variant_id, quantity)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.CartID, item.ProductID, item.VariantID, item.Quantity); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE carts SET updated_at = NOW() WHERE id = $1`, item.CartID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *CartRepository) UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $1
		WHERE id = $2 AND cart_id = $3
	`, quantity, itemID, cartID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID)
	return err
}

func (r *CartRepository) RemoveItem(ctx context.Context, cartID, itemID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID)
	return err
}
