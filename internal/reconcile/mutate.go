package reconcile

import (
	"fmt"
	"math"
)

// AddItem adds quantity of productID to the cart in place. It does not check
// inventory; a later Reconcile (or checkout) enforces stock.
func (c *Cart) AddItem(productID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidArgument, quantity)
	}
	current := max(c.Items[productID], 0)
	if quantity > math.MaxInt-current {
		return fmt.Errorf("%w: adding %d to %d of product %d overflows", ErrInvalidArgument, quantity, current, productID)
	}
	if c.Items == nil {
		c.Items = make(map[int]int)
	}
	c.Items[productID] = current + quantity
	return nil
}

// RemoveItem subtracts quantity of productID from the cart in place. Removing
// exactly what is held deletes the entry; removing more fails with an
// *InsufficientQuantityError and leaves the cart untouched.
func (c *Cart) RemoveItem(productID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidArgument, quantity)
	}
	current := c.Items[productID]
	if quantity > current {
		return &InsufficientQuantityError{ProductID: productID, Current: max(current, 0), Requested: quantity}
	}
	if quantity == current {
		delete(c.Items, productID)
		return nil
	}
	c.Items[productID] = current - quantity
	return nil
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = make(map[int]int)
}
