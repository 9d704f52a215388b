// Package cart owns persisted carts and the workflows around them: edits,
// validation against live inventory, and checkout.
package cart

import (
	"context"
	"maps"

	"github.com/andreasstove999/duck-emporium/internal/reconcile"
)

// Store persists one cart per owner. Replace is wholesale and never stores
// entries with quantity <= 0.
type Store interface {
	LoadOrCreate(ctx context.Context, ownerID int) (reconcile.Cart, error)
	Replace(ctx context.Context, c reconcile.Cart) error
}

// positiveItems returns the entries worth persisting.
func positiveItems(items map[int]int) map[int]int {
	out := maps.Clone(items)
	if out == nil {
		return map[int]int{}
	}
	maps.DeleteFunc(out, func(_, qty int) bool { return qty <= 0 })
	return out
}
