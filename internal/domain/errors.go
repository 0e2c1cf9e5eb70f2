package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrVendorMismatch is returned when a cart item's product belongs to a
	// different vendor than the cart.
	ErrVendorMismatch = errors.New("product vendor does not match cart vendor")

	ErrNegativeAppliedAmount = errors.New("applied amount cannot be negative")

	ErrInsufficientStock = errors.New("insufficient stock")
)

// RecomputeError reports a failed recomputation of a derived field
// (order total or payment amount). Callers always see these failures;
// a stale derived value is never silently persisted as if correct.
type RecomputeError struct {
	Entity string
	ID     string
	Err    error
}

func (e *RecomputeError) Error() string {
	return fmt.Sprintf("recompute %s %s: %v", e.Entity, e.ID, e.Err)
}

func (e *RecomputeError) Unwrap() error {
	return e.Err
}
