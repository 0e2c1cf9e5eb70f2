package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

type PaymentMethod struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Amount is derived: order total minus the discounts of vouchers that were
// valid when the amount was last recomputed, floored at zero.
type Payment struct {
	ID              string              `json:"id"`
	OrderID         string              `json:"order_id"`
	PaymentMethodID string              `json:"payment_method_id"`
	Amount          decimal.NullDecimal `json:"amount"`
	Status          PaymentStatus       `json:"status"`
	Usages          []VoucherUsage      `json:"usages,omitempty"`
	PaymentDate     time.Time           `json:"payment_date"`
}
