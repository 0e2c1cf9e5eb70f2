package vouchers

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/marketplace/internal/domain"
)

// ErrDuplicateCode is returned when a voucher code already exists.
var ErrDuplicateCode = errors.New("voucher code already exists")

const uniqueViolation = "23505"

type VoucherRepository struct {
	db *sql.DB
}

func NewVoucherRepository(db *sql.DB) *VoucherRepository {
	return &VoucherRepository{db: db}
}

func (r *VoucherRepository) Create(ctx context.Context, voucher *domain.Voucher) error {
	voucher.ID = uuid.New().String()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vouchers (id, code, discount_amount, payment_method_id, minimum_order_value, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, voucher.ID, voucher.Code, voucher.DiscountAmount, voucher.PaymentMethodID,
		voucher.MinimumOrderValue, voucher.ExpiryDate)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateCode
		}
		return err
	}
	return nil
}

func (r *VoucherRepository) GetByCode(ctx context.Context, code string) (*domain.Voucher, error) {
	voucher := &domain.Voucher{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, code, discount_amount, payment_method_id, minimum_order_value, expiry_date
		FROM vouchers
		WHERE code = $1
	`, code).Scan(&voucher.ID, &voucher.Code, &voucher.DiscountAmount,
		&voucher.PaymentMethodID, &voucher.MinimumOrderValue, &voucher.ExpiryDate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return voucher, nil
}
