package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/duck-emporium/internal/inventory"
	"github.com/andreasstove999/duck-emporium/internal/reconcile"
)

const (
	EventNameCartCheckedOut = "CartCheckedOut"
	EventNameCartReconciled = "CartReconciled"
	EventNameStockReserved  = "StockReserved"
	EventNameStockDepleted  = "StockDepleted"

	eventVersionV1 = 1

	cartCheckedOutSchema = "contracts/events/cart/CartCheckedOut.v1.enveloped.schema.json"
	cartReconciledSchema = "contracts/events/cart/CartReconciled.v1.enveloped.schema.json"
	stockReservedSchema  = "contracts/events/inventory/StockReserved.v1.enveloped.schema.json"
	stockDepletedSchema  = "contracts/events/inventory/StockDepleted.v1.enveloped.schema.json"
)

type CheckedOutItem struct {
	ProductID int             `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type CartCheckedOutPayload struct {
	CheckoutID   string           `json:"checkoutId"`
	CustomerID   int              `json:"customerId"`
	Items        []CheckedOutItem `json:"items"`
	Total        decimal.Decimal  `json:"total"`
	CheckedOutAt time.Time        `json:"checkedOutAt"`
}

type CartReconciledPayload struct {
	CustomerID int                 `json:"customerId"`
	Items      map[int]int         `json:"items"`
	Warnings   []reconcile.Warning `json:"warnings"`
	Total      decimal.Decimal     `json:"total"`
}

type StockReservedPayload struct {
	CheckoutID string           `json:"checkoutId"`
	CustomerID int              `json:"customerId"`
	Items      []inventory.Line `json:"items"`
	Timestamp  time.Time        `json:"timestamp"`
}

type StockDepletedPayload struct {
	CheckoutID string                   `json:"checkoutId"`
	CustomerID int                      `json:"customerId"`
	Depleted   []inventory.DepletedLine `json:"depleted"`
	Timestamp  time.Time                `json:"timestamp"`
}
