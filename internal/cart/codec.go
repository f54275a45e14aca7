package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cakeshop-cart/internal/domain"
	"github.com/shopspring/decimal"
)

// PayloadVersion is written with every persisted cart.
const PayloadVersion = 1

type payload struct {
	Version  int               `json:"version"`
	Items    []domain.LineItem `json:"items"`
	Discount decimal.Decimal   `json:"discount"`
}

// wirePayload uses pointers so missing fields can be told apart from zero values.
type wirePayload struct {
	Version  *int               `json:"version"`
	Items    *[]domain.LineItem `json:"items"`
	Discount *decimal.Decimal   `json:"discount"`
}

// Encode serializes the persisted part of s. Totals are never written.
func Encode(s domain.State) ([]byte, error) {
	items := s.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	return json.Marshal(payload{Version: PayloadVersion, Items: items, Discount: s.Discount})
}

// Decode parses and validates a persisted cart. Every failure wraps
// domain.ErrPersistenceCorrupted.
func Decode(raw []byte) (domain.State, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var w wirePayload
	if err := dec.Decode(&w); err != nil {
		return domain.State{}, corrupted("decode: %v", err)
	}
	if dec.More() {
		return domain.State{}, corrupted("trailing data after payload")
	}
	if w.Version == nil || *w.Version != PayloadVersion {
		return domain.State{}, corrupted("unsupported payload version")
	}
	if w.Items == nil || w.Discount == nil {
		return domain.State{}, corrupted("missing items or discount")
	}

	s := domain.State{Items: *w.Items, Discount: *w.Discount}
	if err := Validate(s); err != nil {
		return domain.State{}, corrupted("%v", err)
	}
	if len(s.Items) == 0 {
		s.Items = nil
	}
	return s, nil
}

// Validate checks the cart invariants on a state that did not come from Reduce.
func Validate(s domain.State) error {
	if s.Discount.IsNegative() {
		return errors.New("negative discount")
	}
	seen := make(map[string]struct{}, len(s.Items))
	for i, item := range s.Items {
		if strings.TrimSpace(item.LineID) == "" || strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("item %d: missing id", i)
		}
		if item.Quantity < 1 || item.Quantity > MaxQuantity {
			return fmt.Errorf("item %d: quantity %d outside 1..%d", i, item.Quantity, MaxQuantity)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("item %d: negative unit price", i)
		}
		if _, dup := seen[item.LineID]; dup {
			return fmt.Errorf("item %d: duplicate line id %q", i, item.LineID)
		}
		seen[item.LineID] = struct{}{}
		for _, prev := range s.Items[:i] {
			if prev.SameProduct(item.ProductID, item.SelectedOptions) {
				return fmt.Errorf("item %d: duplicate product %q with same options", i, item.ProductID)
			}
		}
	}
	return nil
}

func corrupted(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrPersistenceCorrupted, fmt.Sprintf(format, args...))
}
