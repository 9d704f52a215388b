package cart

import (
	"errors"
	"fmt"

	"github.com/andreasstove999/duck-emporium/internal/reconcile"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrCartChanged          = errors.New("cart changed during validation")
	ErrInventoryUnavailable = errors.New("inventory unavailable")
)

// CartChangedError is returned by Checkout when reconciliation corrected the
// cart. The corrected cart has already been saved; the owner must review it.
type CartChangedError struct {
	Cart    reconcile.Cart
	Outcome reconcile.Outcome
}

func (e *CartChangedError) Error() string {
	return fmt.Sprintf("cart %d changed during validation (%d warnings)", e.Cart.OwnerID, len(e.Outcome.Warnings))
}

func (e *CartChangedError) Is(target error) bool {
	return target == ErrCartChanged
}
