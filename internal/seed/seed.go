package seed

import (
	"context"
	"fmt"

	"cakeshop-cart/internal/domain"
	"github.com/shopspring/decimal"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// Cakes is the demo catalog used for manual testing.
var Cakes = []domain.Product{
	{
		ID:          "chocolate-fudge",
		Name:        "Chocolate Fudge Cake",
		Description: "Three layers of dark chocolate sponge with fudge icing",
		Price:       decimal.RequireFromString("28.00"),
		Currency:    "USD",
	},
	{
		ID:          "red-velvet",
		Name:        "Red Velvet",
		Description: "Buttermilk sponge with cream cheese frosting",
		Price:       decimal.RequireFromString("24.99"),
		Currency:    "USD",
	},
	{
		ID:          "lemon-drizzle",
		Name:        "Lemon Drizzle Loaf",
		Description: "Zesty loaf soaked in lemon syrup",
		Price:       decimal.RequireFromString("14.50"),
		Currency:    "USD",
	},
	{
		ID:          "strawberry-shortcake",
		Name:        "Strawberry Shortcake",
		Description: "Fresh strawberries and whipped cream",
		Price:       decimal.RequireFromString("22.00"),
		Currency:    "USD",
	},
}

// Apply upserts the demo catalog. It is idempotent.
func Apply(ctx context.Context, repo ProductWriter) (int, error) {
	for i, p := range Cakes {
		if _, err := repo.Upsert(ctx, p); err != nil {
			return i, fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
	}
	return len(Cakes), nil
}
