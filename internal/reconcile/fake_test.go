package reconcile

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

type fakeInventory struct {
	mu       sync.Mutex
	products map[int]Product
	failures map[int]error
	block    map[int]bool
	calls    map[int]int
}

func newFakeInventory(products ...Product) *fakeInventory {
	f := &fakeInventory{
		products: map[int]Product{},
		failures: map[int]error{},
		block:    map[int]bool{},
		calls:    map[int]int{},
	}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeInventory) GetProduct(ctx context.Context, id int) (Product, error) {
	f.mu.Lock()
	f.calls[id]++
	block := f.block[id]
	err := f.failures[id]
	p, ok := f.products[id]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return Product{}, ctx.Err()
	}
	if err != nil {
		return Product{}, err
	}
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (f *fakeInventory) callCount(id int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func product(id int, name string, available int, price string) Product {
	return Product{ID: id, Name: name, AvailableQuantity: available, UnitPrice: decimal.RequireFromString(price)}
}
