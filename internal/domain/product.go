package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Carts reference it by ID and snapshot its price.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}
