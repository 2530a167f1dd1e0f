// Package handler exposes the storefront core over HTTP: product catalog
// reads, per-session cart mutations, identity changes, and checkout.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/averlon/storefront/internal/domain/catalog"
	"github.com/averlon/storefront/internal/domain/checkout"
)

// Handler implements the HTTP API, delegating business logic to the domain
// services.
type Handler struct {
	products catalog.Repository
	checkout *checkout.Service
	sessions *Sessions
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(products catalog.Repository, checkoutSvc *checkout.Service, sessions *Sessions) *Handler {
	return &Handler{
		products: products,
		checkout: checkoutSvc,
		sessions: sessions,
	}
}

// Routes returns the API router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/products", h.ListProducts)
	r.Get("/products/{id}", h.GetProduct)

	r.Post("/session", h.SetSessionIdentity)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddCartItem)
		r.Patch("/items/{productID}", h.UpdateCartItem)
		r.Delete("/items/{productID}", h.RemoveCartItem)
		r.Post("/selection", h.PrepareCheckout)
	})

	r.Post("/checkout", h.Checkout)

	return r
}
