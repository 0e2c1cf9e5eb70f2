package auth

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/joao-fontenele/marketplace/internal/domain"
)

// SQLOwnershipResolver looks up resource owners directly; payments and
// products resolve through their order and vendor rows respectively.
type SQLOwnershipResolver struct {
	db *sql.DB
}

func NewSQLOwnershipResolver(db *sql.DB) *SQLOwnershipResolver {
	return &SQLOwnershipResolver{db: db}
}

func (r *SQLOwnershipResolver) ResolveOwner(ctx context.Context, kind ResourceKind, id string) (string, error) {
	var query string
	switch kind {
	case ResourceOrder:
		query = `SELECT user_id FROM orders WHERE id = $1`
	case ResourceCart:
		query = `SELECT user_id FROM carts WHERE id = $1`
	case ResourcePayment:
		query = `
			SELECT o.user_id
			FROM payments p
			JOIN orders o ON o.id = p.order_id
			WHERE p.id = $1
		`
	case ResourceProduct:
		query = `
			SELECT v.user_id
			FROM products p
			JOIN vendors v ON v.id = p.vendor_id
			WHERE p.id = $1
		`
	case ResourceVendor:
		query = `SELECT user_id FROM vendors WHERE id = $1`
	default:
		return "", fmt.Errorf("unknown resource kind %q", kind)
	}

	var owner string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&owner)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", domain.ErrNotFound
		}
		return "", err
	}

	return owner, nil
}
