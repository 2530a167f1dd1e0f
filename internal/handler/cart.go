package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/averlon/storefront/internal/domain/cart"
	"github.com/averlon/storefront/internal/domain/catalog"
	"github.com/averlon/storefront/internal/domain/identity"
	"github.com/averlon/storefront/internal/domain/order"
)

type cartLineResponse struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice string `json:"unitPrice"`
	Image     string `json:"image,omitempty"`
	Quantity  int    `json:"quantity"`
}

type cartResponse struct {
	Owner string             `json:"owner"`
	Lines []cartLineResponse `json:"lines"`
}

func toCartResponse(owner identity.Identity, c cart.Cart) cartResponse {
	lines := make([]cartLineResponse, len(c.Lines))
	for i, l := range c.Lines {
		lines[i] = cartLineResponse{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Image:     l.Image,
			Quantity:  l.Quantity,
		}
	}
	return cartResponse{Owner: owner.SlotKey(), Lines: lines}
}

// GetCart handles GET /cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	store, err := h.storeFor(r)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(store.Owner(), store.Snapshot()))
}

// AddCartItem handles POST /cart/items. The product snapshot (name, price,
// image) is taken from the catalog at add time.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	store, err := h.storeFor(r)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	var req struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	p, err := h.products.GetByID(r.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	item := cart.Item{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Image:     p.Image.Thumbnail,
	}
	if err := store.Add(r.Context(), item, req.Quantity); err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(store.Owner(), store.Snapshot()))
}

// UpdateCartItem handles PATCH /cart/items/{productID}.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	store, err := h.storeFor(r)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	productID := chi.URLParam(r, "productID")
	if err := store.UpdateQuantity(r.Context(), productID, req.Quantity); err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(store.Owner(), store.Snapshot()))
}

// RemoveCartItem handles DELETE /cart/items/{productID}.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	store, err := h.storeFor(r)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	if err := store.Remove(r.Context(), chi.URLParam(r, "productID")); err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(store.Owner(), store.Snapshot()))
}

// ClearCart handles DELETE /cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	store, err := h.storeFor(r)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	if err := store.Clear(r.Context()); err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(store.Owner(), store.Snapshot()))
}

type checkoutLineResponse struct {
	ProductID string `json:"productId,omitempty"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

func toCheckoutLines(lines []order.Line) []checkoutLineResponse {
	out := make([]checkoutLineResponse, len(lines))
	for i, l := range lines {
		out[i] = checkoutLineResponse{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
		}
	}
	return out
}

// PrepareCheckout handles POST /cart/selection: it records the subset of
// cart lines the shopper intends to purchase and returns the derived
// checkout lines. An empty list selects everything.
func (h *Handler) PrepareCheckout(w http.ResponseWriter, r *http.Request) {
	store, err := h.storeFor(r)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	var req struct {
		ProductIDs []string `json:"productIds"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	lines := store.PrepareCheckout(req.ProductIDs)
	writeJSON(w, http.StatusOK, map[string]any{"lines": toCheckoutLines(lines)})
}

// SetSessionIdentity handles POST /session: the host's auth integration
// reports identity changes here, driving cart ownership transitions
// (merge on login, reset on logout).
func (h *Handler) SetSessionIdentity(w http.ResponseWriter, r *http.Request) {
	store, err := h.storeFor(r)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	var req struct {
		UserID *string `json:"userId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	to := identity.Guest()
	if req.UserID != nil && *req.UserID != "" {
		to = identity.User(*req.UserID)
	}

	if err := store.SetOwner(r.Context(), to); err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(store.Owner(), store.Snapshot()))
}

func writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrNoSession) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeInternalError(w, r, err)
}
