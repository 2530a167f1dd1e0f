package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
//
// Stock is nil for non-inventoried products: they can be sold in any
// quantity and are exempt from checkout stock validation.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
	Image    Image
	Stock    *int
}

// Image holds responsive image URLs for a product.
type Image struct {
	Thumbnail string
	Mobile    string
	Tablet    string
	Desktop   string
}

// Repository defines read operations for the product catalog. The cart and
// checkout layers never write to the catalog through this interface; stock
// decrements happen only inside the checkout transaction.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// StockReader reads the advisory stock level of a product.
//
// tracked is false when the product does not exist or carries no stock
// field; such products impose no quantity constraint. Errors indicate the
// lookup itself failed — callers at the cart stage treat that as "unknown
// stock" and proceed unclamped.
type StockReader interface {
	Stock(ctx context.Context, productID string) (stock int, tracked bool, err error)
}
