package cart

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/duck-emporium/internal/reconcile"
)

type memStore struct {
	mu         sync.Mutex
	carts      map[int]map[int]int
	replaceErr error
	replaces   int
}

func newMemStore() *memStore {
	return &memStore{carts: map[int]map[int]int{}}
}

func (m *memStore) seed(ownerID int, items map[int]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[ownerID] = maps.Clone(items)
}

func (m *memStore) items(ownerID int) map[int]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.carts[ownerID])
}

func (m *memStore) LoadOrCreate(ctx context.Context, ownerID int) (reconcile.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[ownerID]; !ok {
		m.carts[ownerID] = map[int]int{}
	}
	return reconcile.Cart{OwnerID: ownerID, Items: maps.Clone(m.carts[ownerID])}, nil
}

func (m *memStore) Replace(ctx context.Context, c reconcile.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaces++
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.carts[c.OwnerID] = positiveItems(c.Items)
	return nil
}

type stockLookup struct {
	products map[int]reconcile.Product
	down     map[int]bool
}

func (s stockLookup) GetProduct(ctx context.Context, id int) (reconcile.Product, error) {
	if s.down[id] {
		return reconcile.Product{}, errors.New("connection refused")
	}
	p, ok := s.products[id]
	if !ok {
		return reconcile.Product{}, reconcile.ErrProductNotFound
	}
	return p, nil
}

func duck(id int, name string, available int, price string) reconcile.Product {
	return reconcile.Product{ID: id, Name: name, AvailableQuantity: available, UnitPrice: decimal.RequireFromString(price)}
}

type recordingPublisher struct {
	mu          sync.Mutex
	reconciled  []reconcile.Cart
	checkedOut  []Receipt
	checkoutErr error
}

func (p *recordingPublisher) PublishCartReconciled(ctx context.Context, c reconcile.Cart, out reconcile.Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reconciled = append(p.reconciled, c)
	return nil
}

func (p *recordingPublisher) PublishCartCheckedOut(ctx context.Context, r Receipt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.checkoutErr != nil {
		return p.checkoutErr
	}
	p.checkedOut = append(p.checkedOut, r)
	return nil
}
