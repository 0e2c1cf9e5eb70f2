package domain

type Vendor struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	StoreName        string `json:"store_name"`
	StoreDescription string `json:"store_description,omitempty"`
	IsApproved       bool   `json:"is_approved"`
}
