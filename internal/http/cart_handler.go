package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// GetCart returns the cart priced against the current catalog.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	b, err := h.orders.PricedCart(r.Context(), userID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	line, err := h.cart.AddToCart(r.Context(), userID(r.Context()), req.ProductID, qty)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	line, err := h.cart.UpdateQuantity(r.Context(), userID(r.Context()), chi.URLParam(r, "lineId"), req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.RemoveItem(r.Context(), userID(r.Context()), chi.URLParam(r, "lineId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.ClearCart(r.Context(), userID(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
