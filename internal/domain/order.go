package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// TotalPrice is a derived field: it holds no value until the order total
// has been computed from its items, and it is only updated when a
// recompute runs.
type Order struct {
	ID         string              `json:"id"`
	UserID     string              `json:"user_id"`
	VendorID   string              `json:"vendor_id"`
	TotalPrice decimal.NullDecimal `json:"total_price"`
	IsPaid     bool                `json:"is_paid"`
	Status     OrderStatus         `json:"status"`
	Items      []OrderItem         `json:"items"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// Price is the per-unit price snapshot taken when the item was priced:
// product base price plus the variant modifier, if any. It does not track
// later product price changes.
type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	VariantID *string         `json:"variant_id,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}
