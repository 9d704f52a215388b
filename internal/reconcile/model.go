// Package reconcile repairs a shopping cart against a live inventory snapshot.
//
// The package holds no state between calls: callers pass the cart and an
// InventoryLookup in, and get a corrected copy back. Persisting the result is
// the caller's job, signalled by Outcome.Changed.
package reconcile

import (
	"maps"
	"slices"

	"github.com/shopspring/decimal"
)

// Product is a read-only inventory snapshot taken at reconciliation time.
type Product struct {
	ID                int             `json:"id"`
	Name              string          `json:"name"`
	AvailableQuantity int             `json:"availableQuantity"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
}

// Cart maps product id to requested quantity for a single owner.
type Cart struct {
	OwnerID int         `json:"customerId"`
	Items   map[int]int `json:"items"`
}

// NewCart returns an empty cart for ownerID.
func NewCart(ownerID int) Cart {
	return Cart{OwnerID: ownerID, Items: map[int]int{}}
}

// Clone returns a deep copy of the cart.
func (c Cart) Clone() Cart {
	items := make(map[int]int, len(c.Items))
	maps.Copy(items, c.Items)
	return Cart{OwnerID: c.OwnerID, Items: items}
}

// ProductIDs returns the cart's product ids in ascending order.
func (c Cart) ProductIDs() []int {
	return slices.Sorted(maps.Keys(c.Items))
}

// IsEmpty reports whether the cart holds no positive quantities.
func (c Cart) IsEmpty() bool {
	for _, qty := range c.Items {
		if qty > 0 {
			return false
		}
	}
	return true
}

// Anomaly classifies a warning emitted during reconciliation.
type Anomaly string

const (
	AnomalyNotFound   Anomaly = "not_found"
	AnomalyOutOfStock Anomaly = "out_of_stock"
	AnomalyClamped    Anomaly = "clamped"
	AnomalyUnverified Anomaly = "unverified"
)

// Warning is a non-fatal, user-facing note about one cart entry.
type Warning struct {
	ProductID int     `json:"productId"`
	Kind      Anomaly `json:"kind"`
	Message   string  `json:"message"`
}

func (w Warning) String() string { return w.Message }

// Outcome is the result of reconciling a cart. It is derived and never persisted.
type Outcome struct {
	ValidatedItems map[int]int `json:"validatedItems"`
	// ResolvedProducts holds one snapshot per verified surviving entry, in
	// ascending product id order.
	ResolvedProducts []Product `json:"resolvedProducts"`
	Warnings         []Warning `json:"warnings"`
	// Unverified lists entries kept without a snapshot because the lookup failed.
	Unverified []int `json:"unverified,omitempty"`
	Changed    bool  `json:"changed"`
}

// Cart returns the validated items as a cart owned by ownerID.
func (o Outcome) Cart(ownerID int) Cart {
	return Cart{OwnerID: ownerID, Items: maps.Clone(o.ValidatedItems)}
}

// Total is CartTotal over the outcome's resolved products.
func (o Outcome) Total() decimal.Decimal {
	return CartTotal(o.ResolvedProducts, o.ValidatedItems)
}
