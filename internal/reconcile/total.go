package reconcile

import "github.com/shopspring/decimal"

// LineTotal is unit*qty rounded half away from zero to two decimal places.
func LineTotal(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}

// CartTotal sums the rounded line totals of products against items. Each line
// is rounded before summing, so the result can differ by a cent from rounding
// the unrounded sum once.
func CartTotal(products []Product, items map[int]int) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		qty := items[p.ID]
		if qty <= 0 || p.UnitPrice.IsNegative() {
			continue
		}
		total = total.Add(LineTotal(p.UnitPrice, qty))
	}
	return total
}
