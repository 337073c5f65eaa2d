package catalog

import (
	"strings"
	"time"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
)

// Product prices are integer minor currency units (cents).
type Product struct {
	ID              string    `json:"productId"`
	Name            string    `json:"name"`
	Category        string    `json:"category"`
	PriceCents      int64     `json:"priceCents"`
	DiscountPercent int       `json:"discountPercent"`
	InStock         bool      `json:"inStock"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (p Product) Validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return apperr.New(apperr.KindInvalidArgument, "product id is required")
	case strings.TrimSpace(p.Name) == "":
		return apperr.New(apperr.KindInvalidArgument, "product name is required")
	case p.PriceCents < 0:
		return apperr.New(apperr.KindInvalidArgument, "price must not be negative")
	case p.DiscountPercent < 0 || p.DiscountPercent > 100:
		return apperr.New(apperr.KindInvalidArgument, "discount must be between 0 and 100")
	}
	return nil
}

type Sort string

const (
	SortName      Sort = "name"
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortNewest    Sort = "newest"
)

func ParseSort(s string) (Sort, error) {
	switch Sort(s) {
	case "":
		return SortName, nil
	case SortName, SortPriceAsc, SortPriceDesc, SortNewest:
		return Sort(s), nil
	}
	return "", apperr.New(apperr.KindInvalidArgument, "unknown sort %q", s)
}

// Filter narrows a product listing. Price bounds apply to the list price and
// are inclusive; nil means unbounded.
type Filter struct {
	Category    string
	MinPrice    *int64
	MaxPrice    *int64
	InStockOnly bool
	Sort        Sort
	Limit       int
}
