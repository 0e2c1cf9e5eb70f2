package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/marketplace/internal/domain"
)

// ErrDuplicateVendor is returned when a user already has a store.
var ErrDuplicateVendor = errors.New("user already has a store")

type VendorRepository struct {
	db *sql.DB
}

func NewVendorRepository(db *sql.DB) *VendorRepository {
	return &VendorRepository{db: db}
}

// Create inserts the vendor and flips the owner's is_vendor flag in the
// same transaction.
func (r *VendorRepository) Create(ctx context.Context, vendor *domain.Vendor) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	vendor.ID = uuid.New().String()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO vendors (id, user_id, store_name, store_description, is_approved)
		VALUES ($1, $2, $3, $4, false)
	`, vendor.ID, vendor.UserID, vendor.StoreName, vendor.StoreDescription)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateVendor
		}
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET is_vendor = true WHERE id = $1`, vendor.UserID); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *VendorRepository) GetByID(ctx context.Context, id string) (*domain.Vendor, error) {
	return r.scanVendor(r.db.QueryRowContext(ctx, `
		SELECT id, user_id, store_name, store_description, is_approved
		FROM vendors WHERE id = $1
	`, id))
}

// ByUser returns the store owned by the given user.
func (r *VendorRepository) ByUser(ctx context.Context, userID string) (*domain.Vendor, error) {
	return r.scanVendor(r.db.QueryRowContext(ctx, `
		SELECT id, user_id, store_name, store_description, is_approved
		FROM vendors WHERE user_id = $1
	`, userID))
}

func (r *VendorRepository) Approve(ctx context.Context, id string) (*domain.Vendor, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE vendors SET is_approved = true WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, domain.ErrNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *VendorRepository) scanVendor(row *sql.Row) (*domain.Vendor, error) {
	vendor := &domain.Vendor{}
	err := row.Scan(&vendor.ID, &vendor.UserID, &vendor.StoreName,
		&vendor.StoreDescription, &vendor.IsApproved)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return vendor, nil
}
