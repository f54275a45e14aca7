package domain

import (
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one distinct product and options combination held in a cart.
type LineItem struct {
	LineID          string            `json:"lineId"`
	ProductID       string            `json:"productId"`
	Name            string            `json:"name,omitempty"`
	ImageURL        string            `json:"imageUrl,omitempty"`
	UnitPrice       decimal.Decimal   `json:"unitPrice"`
	Quantity        int               `json:"quantity"`
	SelectedOptions map[string]string `json:"selectedOptions,omitempty"`
	AddedAt         time.Time         `json:"addedAt"`
}

// SameProduct reports whether the line holds productID with exactly the given
// options. Nil and empty option sets are equal.
func (l LineItem) SameProduct(productID string, options map[string]string) bool {
	return l.ProductID == productID && maps.Equal(l.SelectedOptions, options)
}

// State is the authoritative cart content. Totals are never stored here.
type State struct {
	Items    []LineItem      `json:"items"`
	Discount decimal.Decimal `json:"discount"`
}

// Clone returns a deep copy so callers can never alias the owner's slices.
func (s State) Clone() State {
	out := State{Discount: s.Discount}
	if len(s.Items) > 0 {
		out.Items = make([]LineItem, len(s.Items))
		for i, item := range s.Items {
			item.SelectedOptions = maps.Clone(item.SelectedOptions)
			out.Items[i] = item
		}
	}
	return out
}

// FindLine returns the index of lineID or -1.
func (s State) FindLine(lineID string) int {
	for i, item := range s.Items {
		if item.LineID == lineID {
			return i
		}
	}
	return -1
}

type Totals struct {
	ItemCount  int             `json:"itemCount"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Discount   decimal.Decimal `json:"discount"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
}

// Snapshot is a read-only view of a cart handed to readers.
type Snapshot struct {
	State
	Totals Totals `json:"totals"`
}
