package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/averlon/storefront/internal/domain/catalog"
)

const (
	listProductsSQL = `SELECT id, name, price, category, image_thumbnail, image_mobile, image_tablet, image_desktop, stock
		FROM products ORDER BY id`

	getProductByIDSQL = `SELECT id, name, price, category, image_thumbnail, image_mobile, image_tablet, image_desktop, stock
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, price, category, image_thumbnail, image_mobile, image_tablet, image_desktop, stock
		FROM products WHERE id = ANY($1)`

	getStockSQL = `SELECT stock FROM products WHERE id = $1`
)

var (
	_ catalog.Repository  = (*ProductRepository)(nil)
	_ catalog.StockReader = (*ProductRepository)(nil)
)

// ProductRepository implements catalog.Repository and catalog.StockReader
// backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Stock reads the advisory stock level of a product. Missing products and
// NULL stock columns both report tracked=false.
func (r *ProductRepository) Stock(ctx context.Context, productID string) (int, bool, error) {
	var stock *int
	err := r.pool.QueryRow(ctx, getStockSQL, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading stock for %q: %w", productID, err)
	}
	if stock == nil {
		return 0, false, nil
	}
	return *stock, true, nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p     catalog.Product
		price decimal.Decimal
	)
	err := row.Scan(
		&p.ID, &p.Name, &price, &p.Category,
		&p.Image.Thumbnail, &p.Image.Mobile, &p.Image.Tablet, &p.Image.Desktop,
		&p.Stock,
	)
	p.Price = price
	return p, err
}
