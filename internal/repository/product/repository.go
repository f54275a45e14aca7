package product

import (
	"context"

	"cakeshop-cart/internal/domain"
)

// Repository is the read side of the cake catalog. GetByID returns
// domain.ErrNotFound for unknown IDs.
type Repository interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

// Writer is used by the seed and importer binaries.
type Writer interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}
