package inventory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/duck-emporium/internal/reconcile"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidProduct = errors.New("invalid product")
)

// Product is a stocked item as the inventory service stores and serves it.
type Product struct {
	ID       int             `json:"id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if p.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	return nil
}

// ToSnapshot converts p into the record the reconciler works on.
func (p Product) ToSnapshot() reconcile.Product {
	return reconcile.Product{
		ID:                p.ID,
		Name:              p.Name,
		AvailableQuantity: p.Quantity,
		UnitPrice:         p.Price,
	}
}

type Line struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

type DepletedLine struct {
	ProductID int `json:"productId"`
	Requested int `json:"requested"`
	Available int `json:"available"`
}

type ReserveResult struct {
	Reserved []Line
	Depleted []DepletedLine
}
