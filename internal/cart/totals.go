package cart

import (
	"cakeshop-cart/internal/domain"
	"github.com/shopspring/decimal"
)

// ComputeTotals derives the cart totals from s. Values keep full precision;
// rounding to currency units is left to presentation.
func ComputeTotals(s domain.State, taxRate decimal.Decimal) domain.Totals {
	subtotal := decimal.Zero
	count := 0
	for _, item := range s.Items {
		count += item.Quantity
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	tax := subtotal.Mul(taxRate)
	grand := subtotal.Add(tax).Sub(s.Discount)
	if grand.IsNegative() {
		grand = decimal.Zero
	}
	return domain.Totals{
		ItemCount:  count,
		Subtotal:   subtotal,
		Tax:        tax,
		Discount:   s.Discount,
		GrandTotal: grand,
	}
}

// Snapshot pairs a copy of s with freshly computed totals.
func Snapshot(s domain.State, taxRate decimal.Decimal) domain.Snapshot {
	return domain.Snapshot{State: s.Clone(), Totals: ComputeTotals(s, taxRate)}
}
