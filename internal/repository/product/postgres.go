package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cakeshop-cart/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PostgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *PostgresRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresRepo{pool: pool, logger: logger.Named("product_repo")}
}

// price is read as text so it lands in decimal.Decimal without float rounding.
const selectProduct = `
SELECT id, name, COALESCE(description, ''), price::text, currency, COALESCE(image_url, ''), created_at
FROM products
`

func (r *PostgresRepo) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, selectProduct+`ORDER BY name, id`)
	if err != nil {
		r.logger.Error("list products", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("list products rows", zap.Error(err))
		return nil, err
	}
	r.logger.Debug("listed products", zap.Int("count", len(result)))
	return result, nil
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, selectProduct+`WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("product not found", zap.String("id", id))
			return nil, domain.ErrNotFound
		}
		r.logger.Error("get product", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(product.ID) == "" {
		return nil, fmt.Errorf("%w: product id is required", domain.ErrInvalidInput)
	}
	if product.Price.IsNegative() {
		return nil, fmt.Errorf("%w: product %s has negative price %s", domain.ErrInvalidInput, product.ID, product.Price)
	}
	const q = `
INSERT INTO products (id, name, description, price, currency, image_url)
VALUES ($1, $2, NULLIF($3, ''), $4::text::numeric, $5, NULLIF($6, ''))
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    price = EXCLUDED.price,
    currency = EXCLUDED.currency,
    image_url = EXCLUDED.image_url
RETURNING created_at
`
	res := product
	err := r.pool.QueryRow(ctx, q,
		product.ID,
		product.Name,
		product.Description,
		product.Price.String(),
		product.Currency,
		product.ImageURL,
	).Scan(&res.CreatedAt)
	if err != nil {
		r.logger.Error("upsert product", zap.String("id", product.ID), zap.Error(err))
		return nil, err
	}
	r.logger.Debug("upserted product", zap.String("id", res.ID), zap.String("price", res.Price.String()))
	return &res, nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Currency, &p.ImageURL, &p.CreatedAt); err != nil {
		return domain.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product %s price %q: %w", p.ID, price, err)
	}
	p.Price = d
	return p, nil
}
