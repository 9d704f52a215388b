package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for a non-positive quantity passed to a cart mutation.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInsufficientQuantity is matched by *InsufficientQuantityError.
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	// ErrProductNotFound is returned by an InventoryLookup when the product no longer exists.
	ErrProductNotFound = errors.New("product not found")
)

// InsufficientQuantityError reports an attempt to remove more than the cart holds.
type InsufficientQuantityError struct {
	ProductID int
	Current   int
	Requested int
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("cannot remove %d of product %d: cart holds %d", e.Requested, e.ProductID, e.Current)
}

func (e *InsufficientQuantityError) Is(target error) bool {
	return target == ErrInsufficientQuantity
}
