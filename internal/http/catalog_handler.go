package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
)

const maxListLimit = 200

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	products, err := h.catalog.List(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if err := decodeJSON(w, r, &p); err != nil {
		h.writeError(w, r, err)
		return
	}
	p.ID = chi.URLParam(r, "productId")

	if err := h.catalog.Save(r.Context(), &p); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), chi.URLParam(r, "productId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseFilter(r *http.Request) (catalog.Filter, error) {
	q := r.URL.Query()
	sort, err := catalog.ParseSort(q.Get("sort"))
	if err != nil {
		return catalog.Filter{}, err
	}
	f := catalog.Filter{
		Category: q.Get("category"),
		Sort:     sort,
		Limit:    maxListLimit,
	}
	if f.MinPrice, err = optionalCents(q.Get("minPrice"), "minPrice"); err != nil {
		return catalog.Filter{}, err
	}
	if f.MaxPrice, err = optionalCents(q.Get("maxPrice"), "maxPrice"); err != nil {
		return catalog.Filter{}, err
	}
	if v := q.Get("inStock"); v != "" {
		if f.InStockOnly, err = strconv.ParseBool(v); err != nil {
			return catalog.Filter{}, apperr.New(apperr.KindInvalidArgument, "inStock must be true or false")
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return catalog.Filter{}, apperr.New(apperr.KindInvalidArgument, "limit must be a positive integer")
		}
		f.Limit = min(n, maxListLimit)
	}
	return f, nil
}

func optionalCents(v, name string) (*int64, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return nil, apperr.New(apperr.KindInvalidArgument, "%s must be a non-negative amount in cents", name)
	}
	return &n, nil
}
