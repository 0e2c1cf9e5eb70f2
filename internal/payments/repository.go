package payments

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace/internal/domain"
	"github.com/joao-fontenele/marketplace/internal/pricing"
)

var (
	// ErrAlreadyCompleted is returned when completing a payment twice.
	ErrAlreadyCompleted = errors.New("payment already completed")

	// errOrderTotalMissing means the payment's order has no computed total
	// yet, so the payment amount cannot be derived from it.
	errOrderTotalMissing = errors.New("order total has not been computed")
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a pending payment for the order and derives its amount in
// the same transaction. With no vouchers attached yet the amount equals the
// order total.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	payment.ID = uuid.New().String()
	payment.Status = domain.PaymentStatusPending
	payment.PaymentDate = time.Now().UTC()
	payment.Usages = []domain.VoucherUsage{}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, payment_method_id, amount, status, payment_date)
		SELECT $1, id, $3, NULL, $4, $5 FROM orders WHERE id = $2
	`, payment.ID, payment.OrderID, payment.PaymentMethodID, payment.Status, payment.PaymentDate)
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

	amount, err := r.recomputeTx(ctx, tx, payment.ID)
	if err != nil {
		return &domain.RecomputeError{Entity: "payment", ID: payment.ID, Err: err}
	}
	payment.Amount.Decimal = amount
	payment.Amount.Valid = true

	return tx.Commit()
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	payment := &domain.Payment{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, payment_method_id, amount, status, payment_date
		FROM payments
		WHERE id = $1
	`, id).Scan(&payment.ID, &payment.OrderID, &payment.PaymentMethodID,
		&payment.Amount, &payment.Status, &payment.PaymentDate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, voucher_id, payment_id, applied_amount, created_at
		FROM voucher_usages
		WHERE payment_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	payment.Usages = []domain.VoucherUsage{}
	for rows.Next() {
		var usage domain.VoucherUsage
		if err := rows.Scan(&usage.ID, &usage.VoucherID, &usage.PaymentID,
			&usage.AppliedAmount, &usage.CreatedAt); err != nil {
			return nil, err
		}
		payment.Usages = append(payment.Usages, usage)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payment, nil
}

// ApplyVoucher records a voucher usage against the payment and rederives
// the payment amount in the same transaction.
func (r *PaymentRepository) ApplyVoucher(ctx context.Context, paymentID, voucherID string, appliedAmount decimal.Decimal) (*domain.Payment, error) {
	if appliedAmount.IsNegative() {
		return nil, domain.ErrNegativeAppliedAmount
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO voucher_usages (id, voucher_id, payment_id, applied_amount, created_at)
		SELECT $1, $2, id, $4, $5 FROM payments WHERE id = $3
	`, uuid.New().String(), voucherID, paymentID, appliedAmount, time.Now().UTC())
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

	if _, err := r.recomputeTx(ctx, tx, paymentID); err != nil {
		return nil, &domain.RecomputeError{Entity: "payment", ID: paymentID, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, paymentID)
}

// Complete settles the payment: it rederives the amount, marks the payment
// completed, and flags the order as paid, all in one transaction.
func (r *PaymentRepository) Complete(ctx context.Context, id string) (*domain.Payment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var orderID string
	var status domain.PaymentStatus
	err = tx.QueryRowContext(ctx,
		`SELECT order_id, status FROM payments WHERE id = $1`, id).Scan(&orderID, &status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if status == domain.PaymentStatusCompleted {
		return nil, ErrAlreadyCompleted
	}

	if _, err := r.recomputeTx(ctx, tx, id); err != nil {
		return nil, &domain.RecomputeError{Entity: "payment", ID: id, Err: err}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE payments SET status = $1, payment_date = NOW() WHERE id = $2
	`, domain.PaymentStatusCompleted, id); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET is_paid = true, updated_at = NOW() WHERE id = $1`, orderID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// RecomputeAmount rederives the payment amount from the order total and the
// attached voucher usages. Failures surface as a RecomputeError; the stored
// amount is left untouched in that case.
func (r *PaymentRepository) RecomputeAmount(ctx context.Context, id string) (*domain.Payment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &domain.RecomputeError{Entity: "payment", ID: id, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := r.recomputeTx(ctx, tx, id); err != nil {
		return nil, &domain.RecomputeError{Entity: "payment", ID: id, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &domain.RecomputeError{Entity: "payment", ID: id, Err: err}
	}

	return r.GetByID(ctx, id)
}

// recomputeTx derives the amount as order total minus the discounts of
// vouchers that are valid for that total right now, floored at zero, and
// writes it back.
func (r *PaymentRepository) recomputeTx(ctx context.Context, tx *sql.Tx, paymentID string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := tx.QueryRowContext(ctx, `
		SELECT o.total_price
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		WHERE p.id = $1
	`, paymentID).Scan(&total)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, domain.ErrNotFound
		}
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, errOrderTotalMissing
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT v.id, v.code, v.discount_amount, v.payment_method_id, v.minimum_order_value, v.expiry_date
		FROM voucher_usages u
		JOIN vouchers v ON v.id = u.voucher_id
		WHERE u.payment_id = $1
	`, paymentID)
	if err != nil {
		return decimal.Zero, err
	}

	vouchers := []domain.Voucher{}
	for rows.Next() {
		var v domain.Voucher
		if err := rows.Scan(&v.ID, &v.Code, &v.DiscountAmount,
			&v.PaymentMethodID, &v.MinimumOrderValue, &v.ExpiryDate); err != nil {
			_ = rows.Close()
			return decimal.Zero, err
		}
		vouchers = append(vouchers, v)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, err
	}
	_ = rows.Close()

	amount := pricing.PaymentAmount(total.Decimal, vouchers, time.Now().UTC())

	if _, err := tx.ExecContext(ctx,
		`UPDATE payments SET amount = $1 WHERE id = $2`, amount, paymentID); err != nil {
		return decimal.Zero, err
	}

	return amount, nil
}

// ListMethods returns the configured payment methods.
func (r *PaymentRepository) ListMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description FROM payment_methods ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	methods := []domain.PaymentMethod{}
	for rows.Next() {
		var method domain.PaymentMethod
		if err := rows.Scan(&method.ID, &method.Name, &method.Description); err != nil {
			return nil, err
		}
		methods = append(methods, method)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return methods, nil
}
