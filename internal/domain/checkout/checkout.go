// Package checkout converts a declared set of order lines and totals into a
// durable Order and Payment, enforcing that no line oversells current
// inventory. The stock validation, stock decrement, and both record writes
// execute inside a single optimistic transaction.
package checkout

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/averlon/storefront/internal/domain/order"
)

// Sentinel errors for checkout validation.
var (
	ErrEmptyLines = errors.New("checkout lines required")

	// ErrTxConflict marks a transaction attempt that failed on a write
	// conflict. Transactors retry attempts failing with it and surface
	// ErrTxRetryExhausted when attempts run out.
	ErrTxConflict = errors.New("transaction write conflict")

	// ErrTxRetryExhausted is returned when conflict retries ran out. The
	// whole checkout call is safe to retry.
	ErrTxRetryExhausted = errors.New("transaction retries exhausted")
)

// InvalidQuantityError indicates a line with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %q", e.ProductID)
}

// InsufficientStockError aborts a checkout whose demand exceeds current
// stock for one product. No partial decrement survives the abort.
type InsufficientStockError struct {
	ProductID string
	Stock     int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: have %d, requested %d", e.ProductID, e.Stock, e.Requested)
}

// TotalsMismatchError rejects caller-computed totals that disagree with the
// line items.
type TotalsMismatchError struct {
	Field    string
	Declared decimal.Decimal
	Computed decimal.Decimal
}

func (e *TotalsMismatchError) Error() string {
	return fmt.Sprintf("totals mismatch on %s: declared %s, computed %s", e.Field, e.Declared, e.Computed)
}

// Tx is one transaction attempt against the inventory-bearing records. All
// ProductStock reads must happen before the first write; the underlying
// primitive relies on read-before-write ordering to detect conflicts.
//
// ProductStock returns tracked=false for products that do not exist or
// carry no stock value; such products are exempt from validation and
// decrement.
type Tx interface {
	ProductStock(ctx context.Context, productID string) (stock int, tracked bool, err error)
	DecrementStock(ctx context.Context, productID string, qty int) error
	CreateOrder(ctx context.Context, o *order.Order) error
	CreatePayment(ctx context.Context, p *order.Payment) error
}

// Transactor runs fn inside an atomic transaction, retrying it on detected
// write conflicts. fn may be invoked multiple times and must be
// side-effect-free outside the Tx.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
