// Package pricing holds the derived-value computations of the marketplace:
// per-item prices, order totals, and payment amounts net of voucher
// discounts. All functions are pure; persistence of the results belongs to
// the orders and payments repositories.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace/internal/domain"
)

type LineItem struct {
	Quantity int
	Price    decimal.Decimal
}

// ItemPrice returns the per-unit price for a product, applying the variant
// modifier when one is present. An absent variant is the common case, not
// an error.
func ItemPrice(basePrice decimal.Decimal, modifier *decimal.Decimal) decimal.Decimal {
	if modifier == nil {
		return basePrice
	}
	return basePrice.Add(*modifier)
}

// OrderTotal sums quantity times price over the given items.
func OrderTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// VoucherValid reports whether the voucher applies to an order of the given
// total: it must be unexpired and the total must meet the voucher's minimum
// order value. Validity is a function of the voucher and the total at call
// time only; usage history is not consulted.
func VoucherValid(v domain.Voucher, orderTotal decimal.Decimal, now time.Time) bool {
	return !v.ExpiryDate.Before(now) && orderTotal.GreaterThanOrEqual(v.MinimumOrderValue)
}

// PaymentAmount returns the order total minus the discounts of the vouchers
// that are valid for that total at the given time, floored at zero. The
// vouchers slice carries one entry per voucher usage attached to the
// payment.
func PaymentAmount(orderTotal decimal.Decimal, vouchers []domain.Voucher, now time.Time) decimal.Decimal {
	discount := decimal.Zero
	for _, v := range vouchers {
		if VoucherValid(v, orderTotal, now) {
			discount = discount.Add(v.DiscountAmount)
		}
	}

	amount := orderTotal.Sub(discount)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
