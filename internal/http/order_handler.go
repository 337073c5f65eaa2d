package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
)

type checkoutRequest struct {
	ShippingAddress string `json:"shippingAddress"`
	ShippingMethod  string `json:"shippingMethod"`
	PaymentMethod   string `json:"paymentMethod"`
	// PaymentStatus is the order status the payment step settled on:
	// "pending" or "processing".
	PaymentStatus string `json:"paymentStatus"`
	Notes         string `json:"notes"`
	CheckoutKey   string `json:"checkoutKey"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	var status order.Status
	if req.PaymentStatus != "" {
		s, err := order.ParseStatus(req.PaymentStatus)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		status = s
	}
	key := req.CheckoutKey
	if key == "" {
		key = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}

	o, err := h.orders.Materialize(r.Context(), checkout.Request{
		UserID:        userID(r.Context()),
		Shipping:      checkout.Shipping{Address: req.ShippingAddress, Method: req.ShippingMethod},
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		Status:        status,
		CheckoutKey:   key,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.Orders(r.Context(), userID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Order(r.Context(), userID(r.Context()), chi.URLParam(r, "orderId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	status, err := order.ParseStatus(req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	o, err := h.orders.Transition(r.Context(), chi.URLParam(r, "orderId"), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
