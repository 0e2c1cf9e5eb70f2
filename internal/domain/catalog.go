package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
}

type Attribute struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AttributeValue struct {
	ID          string `json:"id"`
	AttributeID string `json:"attribute_id"`
	Value       string `json:"value"`
}

type Product struct {
	ID          string          `json:"id"`
	VendorID    string          `json:"vendor_id"`
	CategoryID  *string         `json:"category_id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProductImage holds a hosted image URL for a product. At most one image
// per product is the default; variants without media of their own display
// the product's default image.
type ProductImage struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	URL       string `json:"url"`
	AltText   string `json:"alt_text,omitempty"`
	IsDefault bool   `json:"is_default"`
}

// ProductVariant adjusts the product's base price by PriceModifier,
// which may be negative.
type ProductVariant struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"product_id"`
	AttributeValueID string          `json:"attribute_value_id"`
	PriceModifier    decimal.Decimal `json:"price_modifier"`
}
