package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Voucher struct {
	ID                string          `json:"id"`
	Code              string          `json:"code"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	PaymentMethodID   *string         `json:"payment_method_id,omitempty"`
	MinimumOrderValue decimal.Decimal `json:"minimum_order_value"`
	ExpiryDate        time.Time       `json:"expiry_date"`
}

type VoucherUsage struct {
	ID            string          `json:"id"`
	VoucherID     string          `json:"voucher_id"`
	PaymentID     string          `json:"payment_id"`
	AppliedAmount decimal.Decimal `json:"applied_amount"`
	CreatedAt     time.Time       `json:"created_at"`
}
