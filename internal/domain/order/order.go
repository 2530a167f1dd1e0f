// Package order holds the durable records produced by a successful
// checkout: the Order and its Payment. Both are immutable once created.
package order

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Provider identifies the payment provider chosen at checkout.
type Provider string

// Supported payment providers.
const (
	ProviderCard   Provider = "card"
	ProviderPaypal Provider = "paypal"
)

// ErrUnknownProvider is returned for a payment provider outside the
// supported set.
var ErrUnknownProvider = errors.New("unknown payment provider")

// ParseProvider validates a wire value against the supported providers.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderCard, ProviderPaypal:
		return Provider(s), nil
	}
	return "", errors.Wrapf(ErrUnknownProvider, "%q", s)
}

// Status is the payment status recorded on both the order and the payment
// at creation time. The wire values are kept from the original system.
type Status string

// Payment statuses.
const (
	StatusPaid    Status = "payee"
	StatusPending Status = "en_attente"
	StatusLate    Status = "retard"
)

// ErrUnknownStatus is returned for a status outside the supported set.
var ErrUnknownStatus = errors.New("unknown payment status")

// ParseStatus validates a wire value against the supported statuses. An
// empty value defaults to StatusPaid.
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return StatusPaid, nil
	}
	switch Status(s) {
	case StatusPaid, StatusPending, StatusLate:
		return Status(s), nil
	}
	return "", errors.Wrapf(ErrUnknownStatus, "%q", s)
}

// Line is one purchasable entry of an order. A Line without a ProductID is
// a non-inventoried item: it contributes to totals but is exempt from stock
// validation.
type Line struct {
	ProductID string          `json:"productId,omitempty"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Totals are the caller-computed amounts for an order. The checkout service
// verifies them against the line items before persisting anything.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

// Address is an optional shipping address snapshot stored with the order.
type Address struct {
	FullName   string `json:"fullName"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Order is the durable record of a completed checkout. UserID is empty for
// guest orders.
type Order struct {
	ID        string
	UserID    string
	Lines     []Line
	Totals    Totals
	Status    Status
	Provider  Provider
	Shipping  *Address
	CreatedAt time.Time
}

// Payment is the one-to-one payment record created with an Order. It
// duplicates the order's totals and status at creation time and carries the
// opaque provider reference, when one exists.
type Payment struct {
	ID          string
	OrderID     string
	Totals      Totals
	Provider    Provider
	ProviderRef string
	Status      Status
	CreatedAt   time.Time
}
