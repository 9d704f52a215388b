package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/andreasstove999/duck-emporium/internal/reconcile"
)

// Reconciler is the slice of *reconcile.Reconciler the service needs.
type Reconciler interface {
	Reconcile(ctx context.Context, c reconcile.Cart) reconcile.Outcome
}

// EventsPublisher announces cart changes to the rest of the system.
type EventsPublisher interface {
	PublishCartReconciled(ctx context.Context, c reconcile.Cart, out reconcile.Outcome) error
	PublishCartCheckedOut(ctx context.Context, r Receipt) error
}

type noopPublisher struct{}

func (noopPublisher) PublishCartReconciled(context.Context, reconcile.Cart, reconcile.Outcome) error {
	return nil
}

func (noopPublisher) PublishCartCheckedOut(context.Context, Receipt) error { return nil }

// Validation is a reconciled cart as shown to its owner. Total covers the
// verified lines only; Partial is set when some lines could not be priced.
type Validation struct {
	Cart    reconcile.Cart    `json:"cart"`
	Outcome reconcile.Outcome `json:"outcome"`
	Total   decimal.Decimal   `json:"total"`
	Partial bool              `json:"partial"`
}

type ReceiptLine struct {
	ProductID int             `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// Receipt records a completed checkout.
type Receipt struct {
	CheckoutID   string          `json:"checkoutId"`
	OwnerID      int             `json:"customerId"`
	Lines        []ReceiptLine   `json:"lines"`
	Total        decimal.Decimal `json:"total"`
	CheckedOutAt time.Time       `json:"checkedOutAt"`
}

type ServiceOption func(*Service)

func WithPublisher(p EventsPublisher) ServiceOption {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service runs every cart operation with at most one operation in flight per
// owner, so a reconciliation never races an edit of the same cart.
type Service struct {
	store      Store
	reconciler Reconciler
	publisher  EventsPublisher
	logger     *zap.Logger
	now        func() time.Time
	locks      *ownerLocks
}

func NewService(store Store, reconciler Reconciler, opts ...ServiceOption) *Service {
	s := &Service{
		store:      store,
		reconciler: reconciler,
		publisher:  noopPublisher{},
		logger:     zap.NewNop(),
		now:        time.Now,
		locks:      newOwnerLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Get(ctx context.Context, ownerID int) (reconcile.Cart, error) {
	defer s.locks.lock(ownerID)()
	return s.store.LoadOrCreate(ctx, ownerID)
}

// Replace overwrites the owner's cart. Zero quantities are dropped; negative
// quantities are rejected.
func (s *Service) Replace(ctx context.Context, c reconcile.Cart) (reconcile.Cart, error) {
	for productID, qty := range c.Items {
		if qty < 0 {
			return reconcile.Cart{}, fmt.Errorf("%w: quantity %d for product %d", reconcile.ErrInvalidArgument, qty, productID)
		}
	}

	defer s.locks.lock(c.OwnerID)()

	next := reconcile.Cart{OwnerID: c.OwnerID, Items: positiveItems(c.Items)}
	if err := s.store.Replace(ctx, next); err != nil {
		return reconcile.Cart{}, err
	}
	return next, nil
}

func (s *Service) AddItem(ctx context.Context, ownerID, productID, quantity int) (reconcile.Cart, error) {
	return s.mutate(ctx, ownerID, func(c *reconcile.Cart) error {
		return c.AddItem(productID, quantity)
	})
}

func (s *Service) RemoveItem(ctx context.Context, ownerID, productID, quantity int) (reconcile.Cart, error) {
	return s.mutate(ctx, ownerID, func(c *reconcile.Cart) error {
		return c.RemoveItem(productID, quantity)
	})
}

// RemoveProduct drops the whole entry for productID. Removing an absent
// product is a no-op.
func (s *Service) RemoveProduct(ctx context.Context, ownerID, productID int) (reconcile.Cart, error) {
	return s.mutate(ctx, ownerID, func(c *reconcile.Cart) error {
		if qty := c.Items[productID]; qty > 0 {
			return c.RemoveItem(productID, qty)
		}
		delete(c.Items, productID)
		return nil
	})
}

func (s *Service) Clear(ctx context.Context, ownerID int) (reconcile.Cart, error) {
	return s.mutate(ctx, ownerID, func(c *reconcile.Cart) error {
		c.Clear()
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, ownerID int, fn func(*reconcile.Cart) error) (reconcile.Cart, error) {
	defer s.locks.lock(ownerID)()

	c, err := s.store.LoadOrCreate(ctx, ownerID)
	if err != nil {
		return reconcile.Cart{}, err
	}
	if err := fn(&c); err != nil {
		return reconcile.Cart{}, err
	}
	if err := s.store.Replace(ctx, c); err != nil {
		return reconcile.Cart{}, err
	}
	return c, nil
}

// Validate reconciles the stored cart and saves the corrections, if any.
func (s *Service) Validate(ctx context.Context, ownerID int) (Validation, error) {
	defer s.locks.lock(ownerID)()

	c, err := s.store.LoadOrCreate(ctx, ownerID)
	if err != nil {
		return Validation{}, err
	}

	out, err := s.reconcileAndSave(ctx, c)
	if err != nil {
		return Validation{}, err
	}
	return Validation{
		Cart:    out.Cart(ownerID),
		Outcome: out,
		Total:   out.Total(),
		Partial: len(out.Unverified) > 0,
	}, nil
}

// Checkout reconciles the cart one last time and, if nothing had to change
// and every line was verified, publishes the checkout and empties the cart.
func (s *Service) Checkout(ctx context.Context, ownerID int) (Receipt, error) {
	defer s.locks.lock(ownerID)()

	c, err := s.store.LoadOrCreate(ctx, ownerID)
	if err != nil {
		return Receipt{}, err
	}
	if c.IsEmpty() {
		return Receipt{}, ErrEmptyCart
	}

	out, err := s.reconcileAndSave(ctx, c)
	if err != nil {
		return Receipt{}, err
	}
	if out.Changed {
		return Receipt{}, &CartChangedError{Cart: out.Cart(ownerID), Outcome: out}
	}
	if len(out.Unverified) > 0 {
		return Receipt{}, fmt.Errorf("%w: could not verify products %v", ErrInventoryUnavailable, out.Unverified)
	}

	receipt := s.receipt(ownerID, out)
	if err := s.publisher.PublishCartCheckedOut(ctx, receipt); err != nil {
		return Receipt{}, fmt.Errorf("publish checkout: %w", err)
	}

	if err := s.store.Replace(ctx, reconcile.NewCart(ownerID)); err != nil {
		// The checkout is already published, so a failed clear is logged, not returned.
		s.logger.Error("clear cart after checkout", zap.Int("owner_id", ownerID), zap.Error(err))
	}

	s.logger.Info("cart checked out",
		zap.Int("owner_id", ownerID),
		zap.String("checkout_id", receipt.CheckoutID),
		zap.Int("lines", len(receipt.Lines)),
		zap.String("total", receipt.Total.StringFixed(2)),
	)
	return receipt, nil
}

// reconcileAndSave persists a changed outcome only while ctx is live; a
// cancelled request must not overwrite the cart with a partial result.
func (s *Service) reconcileAndSave(ctx context.Context, c reconcile.Cart) (reconcile.Outcome, error) {
	out := s.reconciler.Reconcile(ctx, c)
	if err := ctx.Err(); err != nil {
		return reconcile.Outcome{}, err
	}
	if !out.Changed {
		return out, nil
	}

	corrected := out.Cart(c.OwnerID)
	if err := s.store.Replace(ctx, corrected); err != nil {
		return reconcile.Outcome{}, fmt.Errorf("save reconciled cart: %w", err)
	}
	if err := s.publisher.PublishCartReconciled(ctx, corrected, out); err != nil {
		s.logger.Warn("publish cart reconciled", zap.Int("owner_id", c.OwnerID), zap.Error(err))
	}
	return out, nil
}

func (s *Service) receipt(ownerID int, out reconcile.Outcome) Receipt {
	r := Receipt{
		CheckoutID:   uuid.NewString(),
		OwnerID:      ownerID,
		Total:        out.Total(),
		CheckedOutAt: s.now().UTC(),
	}
	for _, p := range out.ResolvedProducts {
		qty := out.ValidatedItems[p.ID]
		r.Lines = append(r.Lines, ReceiptLine{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  qty,
			UnitPrice: p.UnitPrice,
			LineTotal: reconcile.LineTotal(p.UnitPrice, qty),
		})
	}
	return r
}
