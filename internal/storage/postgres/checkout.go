package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/averlon/storefront/internal/domain/checkout"
	"github.com/averlon/storefront/internal/domain/order"
)

const (
	decrementStockSQL = `UPDATE products SET stock = stock - $2 WHERE id = $1`

	createOrderSQL = `INSERT INTO orders (id, user_id, lines, subtotal, tax, total, currency, status, provider, shipping, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	createPaymentSQL = `INSERT INTO payments (id, order_id, subtotal, tax, total, currency, provider, provider_ref, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
)

const defaultMaxAttempts = 5

var _ checkout.Transactor = (*TxRunner)(nil)

// TxRunner implements checkout.Transactor with serializable PostgreSQL
// transactions. Attempts that fail on a serialization conflict are retried
// with jittered backoff; the checkout service never retries manually.
type TxRunner struct {
	pool        *pgxpool.Pool
	lg          *zap.Logger
	maxAttempts int
}

// NewTxRunner returns a TxRunner over the given pool.
func NewTxRunner(pool *pgxpool.Pool, lg *zap.Logger) *TxRunner {
	return &TxRunner{
		pool:        pool,
		lg:          lg,
		maxAttempts: defaultMaxAttempts,
	}
}

// InTx implements checkout.Transactor.
func (r *TxRunner) InTx(ctx context.Context, fn func(ctx context.Context, tx checkout.Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := pgx.BeginTxFunc(ctx, r.pool,
			pgx.TxOptions{IsoLevel: pgx.Serializable},
			func(tx pgx.Tx) error {
				return fn(ctx, &checkoutTx{tx: tx})
			},
		)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}
		if attempt >= r.maxAttempts {
			return errors.Wrapf(checkout.ErrTxRetryExhausted, "after %d attempts: %s", attempt, err)
		}

		backoff := time.Duration(attempt) * 10 * time.Millisecond
		backoff += rand.N(backoff)
		r.lg.Debug("transaction conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// isSerializationFailure reports whether err is a serialization failure or
// deadlock, the two SQLSTATEs PostgreSQL uses to signal a retryable
// transaction conflict.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// checkoutTx adapts one pgx transaction to the checkout.Tx port.
type checkoutTx struct {
	tx pgx.Tx
}

var _ checkout.Tx = (*checkoutTx)(nil)

func (t *checkoutTx) ProductStock(ctx context.Context, productID string) (int, bool, error) {
	var stock *int
	err := t.tx.QueryRow(ctx, getStockSQL, productID).Scan(&stock)
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

func (t *checkoutTx) DecrementStock(ctx context.Context, productID string, qty int) error {
	if _, err := t.tx.Exec(ctx, decrementStockSQL, productID, qty); err != nil {
		return fmt.Errorf("decrementing stock for %q: %w", productID, err)
	}
	return nil
}

func (t *checkoutTx) CreateOrder(ctx context.Context, o *order.Order) error {
	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("marshaling order lines: %w", err)
	}

	var shippingJSON []byte
	if o.Shipping != nil {
		shippingJSON, err = json.Marshal(o.Shipping)
		if err != nil {
			return fmt.Errorf("marshaling shipping address: %w", err)
		}
	}

	var userID *string
	if o.UserID != "" {
		userID = &o.UserID
	}

	_, err = t.tx.Exec(ctx, createOrderSQL,
		o.ID, userID, linesJSON,
		o.Totals.Subtotal, o.Totals.Tax, o.Totals.Total, o.Totals.Currency,
		string(o.Status), string(o.Provider), shippingJSON, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

func (t *checkoutTx) CreatePayment(ctx context.Context, p *order.Payment) error {
	var providerRef *string
	if p.ProviderRef != "" {
		providerRef = &p.ProviderRef
	}

	_, err := t.tx.Exec(ctx, createPaymentSQL,
		p.ID, p.OrderID,
		p.Totals.Subtotal, p.Totals.Tax, p.Totals.Total, p.Totals.Currency,
		string(p.Provider), providerRef, string(p.Status), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating payment %q: %w", p.ID, err)
	}
	return nil
}
