package reconcile

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultLookupTimeout  = 2 * time.Second
	DefaultMaxConcurrency = 8
)

// InventoryLookup fetches the current snapshot of one product. It returns
// ErrProductNotFound (possibly wrapped) when the product no longer exists; any
// other error is treated as transient.
type InventoryLookup interface {
	GetProduct(ctx context.Context, id int) (Product, error)
}

// InventoryLookupFunc adapts a function to InventoryLookup.
type InventoryLookupFunc func(ctx context.Context, id int) (Product, error)

func (f InventoryLookupFunc) GetProduct(ctx context.Context, id int) (Product, error) {
	return f(ctx, id)
}

type Option func(*Reconciler)

// WithLookupTimeout bounds each inventory lookup. A timed-out lookup counts as
// a transient failure.
func WithLookupTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.lookupTimeout = d
		}
	}
}

// WithMaxConcurrency caps the number of lookups in flight.
func WithMaxConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.maxConcurrency = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// Reconciler validates carts against an InventoryLookup. It is safe for
// concurrent use; it keeps no per-cart state.
type Reconciler struct {
	inventory      InventoryLookup
	lookupTimeout  time.Duration
	maxConcurrency int
	logger         *zap.Logger
}

func New(inventory InventoryLookup, opts ...Option) *Reconciler {
	r := &Reconciler{
		inventory:      inventory,
		lookupTimeout:  DefaultLookupTimeout,
		maxConcurrency: DefaultMaxConcurrency,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type lookupKind int

const (
	lookupFound lookupKind = iota
	lookupNotFound
	lookupFailed
)

// lookupResult is one of Found(product), NotFound or Failed(err).
type lookupResult struct {
	kind    lookupKind
	product Product
	err     error
}

// Reconcile returns a corrected copy of c. Entries are processed in ascending
// product id order, so warnings are deterministic. Reconcile never fails: a
// product whose stock cannot be verified is kept and reported instead.
//
// The input cart is not modified.
func (r *Reconciler) Reconcile(ctx context.Context, c Cart) Outcome {
	out := Outcome{
		ValidatedItems:   make(map[int]int, len(c.Items)),
		ResolvedProducts: []Product{},
		Warnings:         []Warning{},
	}

	// Zero and negative quantities are treated as absent and dropped without a lookup.
	ids := make([]int, 0, len(c.Items))
	for _, id := range c.ProductIDs() {
		if c.Items[id] > 0 {
			ids = append(ids, id)
		}
	}

	results := r.lookupAll(ctx, ids)
	for i, id := range ids {
		r.apply(&out, id, c.Items[id], results[i])
	}

	out.Changed = !maps.Equal(out.ValidatedItems, c.Items)

	r.logger.Info("cart reconciled",
		zap.Int("owner_id", c.OwnerID),
		zap.Int("items", len(c.Items)),
		zap.Int("warnings", len(out.Warnings)),
		zap.Int("unverified", len(out.Unverified)),
		zap.Bool("changed", out.Changed),
	)
	return out
}

// lookupAll fetches every id concurrently and joins before returning; results
// line up with ids by index.
func (r *Reconciler) lookupAll(ctx context.Context, ids []int) []lookupResult {
	results := make([]lookupResult, len(ids))
	if len(ids) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(r.maxConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = r.lookup(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Reconciler) lookup(ctx context.Context, id int) lookupResult {
	if err := ctx.Err(); err != nil {
		return lookupResult{kind: lookupFailed, err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	p, err := r.inventory.GetProduct(ctx, id)
	switch {
	case err == nil:
		p.ID = id
		p.AvailableQuantity = max(p.AvailableQuantity, 0)
		return lookupResult{kind: lookupFound, product: p}
	case errors.Is(err, ErrProductNotFound):
		return lookupResult{kind: lookupNotFound}
	default:
		return lookupResult{kind: lookupFailed, err: err}
	}
}

func (r *Reconciler) apply(out *Outcome, id, requested int, res lookupResult) {
	switch res.kind {
	case lookupFailed:
		out.ValidatedItems[id] = requested
		out.Unverified = append(out.Unverified, id)
		r.warn(out, id, AnomalyUnverified,
			fmt.Sprintf("Could not verify availability of product %d; it was left in your cart", id),
			zap.Error(res.err))

	case lookupNotFound:
		r.warn(out, id, AnomalyNotFound,
			fmt.Sprintf("Product %d is no longer available and was removed from your cart", id))

	case lookupFound:
		p := res.product
		switch {
		case p.AvailableQuantity == 0:
			r.warn(out, id, AnomalyOutOfStock,
				fmt.Sprintf("%s (product %d) is out of stock and was removed from your cart", p.Name, id))
		case requested > p.AvailableQuantity:
			out.ValidatedItems[id] = p.AvailableQuantity
			out.ResolvedProducts = append(out.ResolvedProducts, p)
			r.warn(out, id, AnomalyClamped,
				fmt.Sprintf("Only %d of %s (product %d) available; quantity reduced from %d to %d",
					p.AvailableQuantity, p.Name, id, requested, p.AvailableQuantity))
		default:
			out.ValidatedItems[id] = requested
			out.ResolvedProducts = append(out.ResolvedProducts, p)
		}
	}
}

func (r *Reconciler) warn(out *Outcome, id int, kind Anomaly, msg string, fields ...zap.Field) {
	out.Warnings = append(out.Warnings, Warning{ProductID: id, Kind: kind, Message: msg})
	r.logger.Debug("cart anomaly",
		append([]zap.Field{zap.Int("product_id", id), zap.String("kind", string(kind))}, fields...)...)
}
