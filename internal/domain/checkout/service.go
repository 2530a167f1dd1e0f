package checkout

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/averlon/storefront/internal/domain/order"
)

// Request is the input to CreateOrderAndPayment. Totals are computed by the
// caller (the presentation layer owns tax policy) but are verified against
// the lines before anything is persisted.
type Request struct {
	UserID      string
	Lines       []order.Line
	Totals      order.Totals
	Provider    order.Provider
	ProviderRef string
	Status      order.Status
	Shipping    *order.Address
}

// Service places orders. It is safe for concurrent use.
type Service struct {
	tx  Transactor
	lg  *zap.Logger
	now func() time.Time
}

// NewService creates a checkout Service over the given transactor.
func NewService(tx Transactor, lg *zap.Logger) *Service {
	return &Service{
		tx:  tx,
		lg:  lg,
		now: time.Now,
	}
}

// CreateOrderAndPayment validates the request, then runs one atomic
// transaction that reads stock for every inventoried line, verifies no line
// oversells, writes the decremented stock, and creates the Order and
// Payment records. It returns the generated order id.
//
// On InsufficientStockError nothing is persisted. The transactor retries
// conflicting attempts; retry exhaustion and connectivity problems surface
// as transaction errors and the whole call is safe to retry.
func (s *Service) CreateOrderAndPayment(ctx context.Context, req Request) (string, error) {
	if len(req.Lines) == 0 {
		return "", ErrEmptyLines
	}
	for _, l := range req.Lines {
		if l.Quantity <= 0 {
			return "", &InvalidQuantityError{ProductID: l.ProductID}
		}
	}

	status, err := order.ParseStatus(string(req.Status))
	if err != nil {
		return "", err
	}
	provider, err := order.ParseProvider(string(req.Provider))
	if err != nil {
		return "", err
	}

	if err := verifyTotals(req.Lines, req.Totals); err != nil {
		return "", err
	}

	now := s.now().UTC()
	o := &order.Order{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Lines:     req.Lines,
		Totals:    req.Totals,
		Status:    status,
		Provider:  provider,
		Shipping:  req.Shipping,
		CreatedAt: now,
	}
	p := &order.Payment{
		ID:          uuid.New().String(),
		OrderID:     o.ID,
		Totals:      req.Totals,
		Provider:    provider,
		ProviderRef: req.ProviderRef,
		Status:      status,
		CreatedAt:   now,
	}

	demands := stockDemands(req.Lines)

	err = s.tx.InTx(ctx, func(ctx context.Context, tx Tx) error {
		// All stock reads complete before the first write. The attempt may
		// run several times, so it must not touch the captured demands.
		decrements := make([]demand, 0, len(demands))
		for _, d := range demands {
			stock, tracked, err := tx.ProductStock(ctx, d.productID)
			if err != nil {
				return err
			}
			if !tracked {
				continue
			}
			if stock < d.quantity {
				return &InsufficientStockError{
					ProductID: d.productID,
					Stock:     stock,
					Requested: d.quantity,
				}
			}
			decrements = append(decrements, d)
		}

		for _, d := range decrements {
			if err := tx.DecrementStock(ctx, d.productID, d.quantity); err != nil {
				return err
			}
		}

		// Order and Payment ride in the same transaction as the stock
		// decrement, so a failed payment write rolls everything back.
		if err := tx.CreateOrder(ctx, o); err != nil {
			return err
		}
		return tx.CreatePayment(ctx, p)
	})
	if err != nil {
		return "", err
	}

	s.lg.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("payment_id", p.ID),
		zap.Int("lines", len(o.Lines)),
		zap.String("total", o.Totals.Total.String()),
	)
	return o.ID, nil
}

// verifyTotals recomputes the subtotal from the lines and checks the
// declared amounts are internally consistent. Client-computed totals are
// never trusted as-is.
func verifyTotals(lines []order.Line, t order.Totals) error {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	if !subtotal.Equal(t.Subtotal) {
		return &TotalsMismatchError{Field: "subtotal", Declared: t.Subtotal, Computed: subtotal}
	}
	if want := t.Subtotal.Add(t.Tax); !want.Equal(t.Total) {
		return &TotalsMismatchError{Field: "total", Declared: t.Total, Computed: want}
	}
	return nil
}

type demand struct {
	productID string
	quantity  int
}

// stockDemands aggregates inventoried line quantities per product and
// orders them by id so every transaction touches rows in the same order.
func stockDemands(lines []order.Line) []demand {
	byID := make(map[string]int)
	for _, l := range lines {
		if l.ProductID == "" {
			continue
		}
		byID[l.ProductID] += l.Quantity
	}

	demands := make([]demand, 0, len(byID))
	for id, qty := range byID {
		demands = append(demands, demand{productID: id, quantity: qty})
	}
	sort.Slice(demands, func(i, j int) bool { return demands[i].productID < demands[j].productID })
	return demands
}
