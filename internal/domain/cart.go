package domain

import "time"

// A cart is scoped to a single vendor; items from other vendors are
// rejected at write time.
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	VendorID  string     `json:"vendor_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartItem struct {
	ID        string  `json:"id"`
	CartID    string  `json:"cart_id"`
	ProductID string  `json:"product_id"`
	VariantID *string `json:"variant_id,omitempty"`
	Quantity  int     `json:"quantity"`
}
