// Package cart holds the pure cart transition function, the derived totals
// calculation and the persisted payload codec. Nothing here performs I/O.
package cart

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"cakeshop-cart/internal/domain"
	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest quantity a single line may hold.
const MaxQuantity = 999

// Command is a cart mutation accepted by Reduce.
type Command interface {
	commandName() string
}

// AddItem adds Quantity units of a product. LineID and AddedAt are only used
// when no line with the same product and options exists yet.
type AddItem struct {
	LineID          string
	ProductID       string
	Name            string
	ImageURL        string
	UnitPrice       decimal.Decimal
	Quantity        int
	SelectedOptions map[string]string
	AddedAt         time.Time
}

type RemoveItem struct {
	LineID string
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
type UpdateQuantity struct {
	LineID   string
	Quantity int
}

type ApplyDiscount struct {
	Amount decimal.Decimal
}

type ClearCart struct{}

func (AddItem) commandName() string        { return "addItem" }
func (RemoveItem) commandName() string     { return "removeItem" }
func (UpdateQuantity) commandName() string { return "updateQuantity" }
func (ApplyDiscount) commandName() string  { return "applyDiscount" }
func (ClearCart) commandName() string      { return "clearCart" }

// EventKind describes what a successful transition did.
type EventKind int

const (
	EventItemAdded EventKind = iota
	EventItemMerged
	EventItemRemoved
	EventQuantityChanged
	EventDiscountApplied
	EventCartCleared
)

func (k EventKind) String() string {
	switch k {
	case EventItemAdded:
		return "item_added"
	case EventItemMerged:
		return "item_merged"
	case EventItemRemoved:
		return "item_removed"
	case EventQuantityChanged:
		return "quantity_changed"
	case EventDiscountApplied:
		return "discount_applied"
	case EventCartCleared:
		return "cart_cleared"
	default:
		return "unknown"
	}
}

// Event is the outcome of a transition. Line is the affected line as it is
// after the transition, or as it was before removal.
type Event struct {
	Kind  EventKind
	Line  domain.LineItem
	Delta int
}

// Reduce applies cmd to s and returns the next state. s is never modified;
// on error the returned state is s unchanged.
func Reduce(s domain.State, cmd Command) (domain.State, Event, error) {
	switch c := cmd.(type) {
	case AddItem:
		return addItem(s, c)
	case RemoveItem:
		return removeItem(s, c.LineID)
	case UpdateQuantity:
		if c.Quantity <= 0 {
			return removeItem(s, c.LineID)
		}
		return updateQuantity(s, c)
	case ApplyDiscount:
		if c.Amount.IsNegative() {
			return s, Event{}, invalid("discount must not be negative")
		}
		next := s.Clone()
		next.Discount = c.Amount
		return next, Event{Kind: EventDiscountApplied}, nil
	case ClearCart:
		return domain.State{Discount: decimal.Zero}, Event{Kind: EventCartCleared}, nil
	default:
		return s, Event{}, invalid(fmt.Sprintf("unsupported command %T", cmd))
	}
}

func addItem(s domain.State, c AddItem) (domain.State, Event, error) {
	if strings.TrimSpace(c.ProductID) == "" {
		return s, Event{}, invalid("product id required")
	}
	if c.UnitPrice.IsNegative() {
		return s, Event{}, invalid("unit price must not be negative")
	}
	if c.Quantity <= 0 {
		return s, Event{}, invalid("quantity must be positive")
	}
	if c.Quantity > MaxQuantity {
		return s, Event{}, invalid(fmt.Sprintf("quantity must not exceed %d", MaxQuantity))
	}

	next := s.Clone()
	for i := range next.Items {
		if next.Items[i].SameProduct(c.ProductID, c.SelectedOptions) {
			if next.Items[i].Quantity > MaxQuantity-c.Quantity {
				return s, Event{}, invalid(fmt.Sprintf("line %q would exceed %d units", next.Items[i].LineID, MaxQuantity))
			}
			next.Items[i].Quantity += c.Quantity
			return next, Event{Kind: EventItemMerged, Line: next.Items[i], Delta: c.Quantity}, nil
		}
	}

	if c.LineID == "" {
		return s, Event{}, invalid("line id required")
	}
	line := domain.LineItem{
		LineID:          c.LineID,
		ProductID:       c.ProductID,
		Name:            c.Name,
		ImageURL:        c.ImageURL,
		UnitPrice:       c.UnitPrice,
		Quantity:        c.Quantity,
		SelectedOptions: maps.Clone(c.SelectedOptions),
		AddedAt:         c.AddedAt,
	}
	next.Items = append(next.Items, line)
	return next, Event{Kind: EventItemAdded, Line: line, Delta: c.Quantity}, nil
}

func removeItem(s domain.State, lineID string) (domain.State, Event, error) {
	idx := s.FindLine(lineID)
	if idx < 0 {
		return s, Event{}, notFound(lineID)
	}
	removed := s.Items[idx]
	next := s.Clone()
	next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
	return next, Event{Kind: EventItemRemoved, Line: removed, Delta: -removed.Quantity}, nil
}

func updateQuantity(s domain.State, c UpdateQuantity) (domain.State, Event, error) {
	idx := s.FindLine(c.LineID)
	if idx < 0 {
		return s, Event{}, notFound(c.LineID)
	}
	if c.Quantity > MaxQuantity {
		return s, Event{}, invalid(fmt.Sprintf("quantity must not exceed %d", MaxQuantity))
	}
	next := s.Clone()
	delta := c.Quantity - next.Items[idx].Quantity
	next.Items[idx].Quantity = c.Quantity
	return next, Event{Kind: EventQuantityChanged, Line: next.Items[idx], Delta: delta}, nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)
}

func notFound(lineID string) error {
	return fmt.Errorf("line %q: %w", lineID, domain.ErrNotFound)
}
