package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Alba-Tab/backend-boutique/internal/platform/db"
	"github.com/Alba-Tab/backend-boutique/internal/shared"
	"github.com/Alba-Tab/backend-boutique/internal/stock"
)

// Repository reads the variant catalog. It never writes stock; sale
// creation is the only writer of that column.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const variantColumns = `v.id, v.product_id, p.name, v.size, v.color, v.price, v.stock, v.min_stock`

func scanVariant(row pgx.Row) (stock.Variant, error) {
	var (
		v     stock.Variant
		price pgtype.Numeric
	)
	if err := row.Scan(&v.ID, &v.ProductID, &v.ProductName, &v.Size, &v.Color, &price, &v.Stock, &v.MinStock); err != nil {
		return stock.Variant{}, err
	}
	v.Price = db.DecimalFromNumeric(price)
	return v, nil
}

func (r *Repository) GetVariant(ctx context.Context, id int64) (stock.Variant, error) {
	v, err := scanVariant(r.pool.QueryRow(ctx, `
		SELECT `+variantColumns+`
		FROM variants v JOIN products p ON p.id = v.product_id
		WHERE v.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stock.Variant{}, shared.ErrNotFound
		}
		return stock.Variant{}, fmt.Errorf("get variant: %w", err)
	}
	return v, nil
}

func (r *Repository) ListVariants(ctx context.Context, limit int) ([]stock.Variant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+variantColumns+`
		FROM variants v JOIN products p ON p.id = v.product_id
		ORDER BY p.name, v.size, v.color
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (stock.Variant, error) {
		return scanVariant(row)
	})
}

// ListLowStock returns variants at or below their minimum threshold.
func (r *Repository) ListLowStock(ctx context.Context) ([]stock.Variant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+variantColumns+`
		FROM variants v JOIN products p ON p.id = v.product_id
		WHERE v.stock <= v.min_stock
		ORDER BY v.stock, p.name`)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (stock.Variant, error) {
		return scanVariant(row)
	})
}

// Service is the cached read side of the catalog.
type Service struct {
	repo  *Repository
	cache *Cache
}

func NewService(repo *Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

func (s *Service) GetVariant(ctx context.Context, id int64) (stock.Variant, error) {
	key, err := s.cache.BuildKey(ctx, "catalog", "variant", strconv.FormatInt(id, 10))
	if err != nil {
		return stock.Variant{}, err
	}
	var v stock.Variant
	err = s.cache.FetchJSON(ctx, key, &v, func(ctx context.Context) (any, error) {
		return s.repo.GetVariant(ctx, id)
	})
	return v, err
}

func (s *Service) ListVariants(ctx context.Context, limit int) ([]stock.Variant, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	key, err := s.cache.BuildKey(ctx, "catalog", "variants", strconv.Itoa(limit))
	if err != nil {
		return nil, err
	}
	var out []stock.Variant
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.repo.ListVariants(ctx, limit)
	})
	return out, err
}

// ListLowStock bypasses the cache: restock decisions need live counts.
func (s *Service) ListLowStock(ctx context.Context) ([]stock.Variant, error) {
	return s.repo.ListLowStock(ctx)
}

// Invalidate drops cached reads after stock changed.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
