package store

import "errors"

// Predefined errors for store operations
var (
	ErrProductNotFound  = errors.New("store: product not found")
	ErrCartNotFound     = errors.New("store: cart not found")
	ErrCartItemNotFound = errors.New("store: cart item not found")
	ErrCartExists       = errors.New("store: cart already exists")
	ErrInvalidSort      = errors.New("store: invalid sort option")
)

// IsNotFound reports whether err means a cart, product or cart item does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrCartNotFound) ||
		errors.Is(err, ErrCartItemNotFound)
}
