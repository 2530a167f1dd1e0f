package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/averlon/storefront/internal/domain/checkout"
	"github.com/averlon/storefront/internal/domain/order"
)

type checkoutLineRequest struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type totalsRequest struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

type addressRequest struct {
	FullName   string `json:"fullName"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

type checkoutRequest struct {
	Lines           []checkoutLineRequest `json:"lines"`
	Totals          totalsRequest         `json:"totals"`
	PaymentProvider string                `json:"paymentProvider"`
	PaymentID       string                `json:"paymentId"`
	Status          string                `json:"status"`
	Shipping        *addressRequest       `json:"shipping"`
}

// Checkout handles POST /checkout. When the request carries no lines, the
// selection prepared on the cart is used. On success the purchased lines
// are removed from the cart; on failure the cart is left unchanged.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	store, err := h.storeFor(r)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	var req checkoutRequest
	if !decodeBody(w, r, &req) {
		return
	}

	lines := make([]order.Line, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = order.Line{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}
	if len(lines) == 0 {
		lines = store.Selection()
	}

	var shipping *order.Address
	if req.Shipping != nil {
		shipping = &order.Address{
			FullName:   req.Shipping.FullName,
			Line1:      req.Shipping.Line1,
			Line2:      req.Shipping.Line2,
			City:       req.Shipping.City,
			PostalCode: req.Shipping.PostalCode,
			Country:    req.Shipping.Country,
			Phone:      req.Shipping.Phone,
		}
	}

	orderID, err := h.checkout.CreateOrderAndPayment(r.Context(), checkout.Request{
		UserID: store.Owner().UserID(),
		Lines:  lines,
		Totals: order.Totals{
			Subtotal: req.Totals.Subtotal,
			Tax:      req.Totals.Tax,
			Total:    req.Totals.Total,
			Currency: req.Totals.Currency,
		},
		Provider:    order.Provider(req.PaymentProvider),
		ProviderRef: req.PaymentID,
		Status:      order.Status(req.Status),
		Shipping:    shipping,
	})
	if err != nil {
		writeCheckoutError(w, r, err)
		return
	}

	// Purchased lines leave the cart only after the order is durable.
	purchased := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.ProductID != "" {
			purchased = append(purchased, l.ProductID)
		}
	}
	if err := store.RemoveMany(r.Context(), purchased); err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"orderId": orderID})
}

// writeCheckoutError maps checkout domain errors to HTTP responses.
func writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, checkout.ErrEmptyLines):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrUnknownProvider), errors.Is(err, order.ErrUnknownStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrTxRetryExhausted):
		writeError(w, http.StatusConflict, "checkout conflicted with concurrent orders, retry")
	default:
		var (
			iqErr *checkout.InvalidQuantityError
			isErr *checkout.InsufficientStockError
			tmErr *checkout.TotalsMismatchError
		)
		switch {
		case errors.As(err, &iqErr):
			writeError(w, http.StatusUnprocessableEntity, iqErr.Error())
		case errors.As(err, &isErr):
			writeError(w, http.StatusUnprocessableEntity, isErr.Error())
		case errors.As(err, &tmErr):
			writeError(w, http.StatusUnprocessableEntity, tmErr.Error())
		default:
			writeInternalError(w, r, err)
		}
	}
}
