package reserve

import (
	"errors"
	"fmt"
)

// InvalidQuantityError reports a reservation line whose quantity is not a
// positive integer. The whole call is rejected before any store mutation.
type InvalidQuantityError struct {
	ItemKey  string
	Quantity int64
}

// Error implements the error interface.
func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for item %q: must be positive", e.Quantity, e.ItemKey)
}

// InsufficientStockError reports the item whose conditional decrement
// affected zero rows. The enclosing transaction has already rolled back, so
// no stock change from the same call persists.
type InsufficientStockError struct {
	ItemKey string
}

// Error implements the error interface.
func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %q", e.ItemKey)
}

// IsInvalidQuantity returns true if the error is an InvalidQuantityError.
// Uses errors.As to handle wrapped errors.
func IsInvalidQuantity(err error) bool {
	var iq *InvalidQuantityError
	return errors.As(err, &iq)
}

// IsInsufficientStock returns true if the error is an InsufficientStockError.
// Uses errors.As to handle wrapped errors.
func IsInsufficientStock(err error) bool {
	var is *InsufficientStockError
	return errors.As(err, &is)
}
