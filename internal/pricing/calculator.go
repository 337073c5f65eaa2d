// Package pricing turns cart lines and live catalog data into a price
// breakdown. All amounts are integer cents.
package pricing

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
)

type Config struct {
	FreeShippingThreshold int64
	FlatShippingFee       int64
	TaxRate               decimal.Decimal
}

type LineBreakdown struct {
	LineID          string `json:"lineId"`
	ProductID       string `json:"productId"`
	Name            string `json:"name"`
	Quantity        int    `json:"quantity"`
	ListPriceCents  int64  `json:"listPriceCents"`
	DiscountPercent int    `json:"discountPercent"`
	UnitPriceCents  int64  `json:"unitPriceCents"`
	LineTotalCents  int64  `json:"lineTotalCents"`
	InStock         bool   `json:"inStock"`
	BlocksCheckout  bool   `json:"blocksCheckout"`
}

// UnavailableLine is a cart line whose product no longer exists. It is kept
// out of every total.
type UnavailableLine struct {
	LineID    string `json:"lineId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type Breakdown struct {
	Lines         []LineBreakdown   `json:"lines"`
	Unavailable   []UnavailableLine `json:"unavailable"`
	SubtotalCents int64             `json:"subtotalCents"`
	ShippingCents int64             `json:"shippingCents"`
	TaxCents      int64             `json:"taxCents"`
	TotalCents    int64             `json:"totalCents"`
}

// Empty reports whether the breakdown was computed from no cart lines at all.
func (b Breakdown) Empty() bool {
	return len(b.Lines) == 0 && len(b.Unavailable) == 0
}

func (b Breakdown) Blocked() bool {
	for _, l := range b.Lines {
		if l.BlocksCheckout {
			return true
		}
	}
	return false
}

// CheckoutAllowed reports whether the cart can be turned into an order as is.
func (b Breakdown) CheckoutAllowed() bool {
	return len(b.Lines) > 0 && len(b.Unavailable) == 0 && !b.Blocked()
}

type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Price is a pure function of its inputs. Lines whose product is missing from
// products are listed as unavailable; out-of-stock products are priced but
// flagged as blocking checkout.
func (c *Calculator) Price(lines []cart.Line, products map[string]catalog.Product) Breakdown {
	b := Breakdown{
		Lines:       make([]LineBreakdown, 0, len(lines)),
		Unavailable: []UnavailableLine{},
	}

	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			b.Unavailable = append(b.Unavailable, UnavailableLine{LineID: l.ID, ProductID: l.ProductID, Quantity: l.Quantity})
			continue
		}

		unit := EffectiveUnitPrice(p.PriceCents, p.DiscountPercent)
		total := unit * int64(l.Quantity)
		b.Lines = append(b.Lines, LineBreakdown{
			LineID:          l.ID,
			ProductID:       p.ID,
			Name:            p.Name,
			Quantity:        l.Quantity,
			ListPriceCents:  p.PriceCents,
			DiscountPercent: p.DiscountPercent,
			UnitPriceCents:  unit,
			LineTotalCents:  total,
			InStock:         p.InStock,
			BlocksCheckout:  !p.InStock,
		})
		b.SubtotalCents += total
	}

	// nothing to ship
	if len(b.Lines) > 0 && b.SubtotalCents < c.cfg.FreeShippingThreshold {
		b.ShippingCents = c.cfg.FlatShippingFee
	}
	b.TaxCents = roundHalfAwayFromZero(decimal.NewFromInt(b.SubtotalCents).Mul(c.cfg.TaxRate))
	b.TotalCents = b.SubtotalCents + b.ShippingCents + b.TaxCents
	return b
}

const lookupConcurrency = 8

// Quote snapshots every referenced product from lookup and prices lines
// against that snapshot. A product that lookup reports as not found becomes an
// unavailable line; any other lookup failure aborts with StoreUnavailable.
func (c *Calculator) Quote(ctx context.Context, lookup catalog.Lookup, lines []cart.Line) (Breakdown, error) {
	products, err := Snapshot(ctx, lookup, lines)
	if err != nil {
		return Breakdown{}, err
	}
	return c.Price(lines, products), nil
}

// Snapshot fetches the distinct products referenced by lines.
func Snapshot(ctx context.Context, lookup catalog.Lookup, lines []cart.Line) (map[string]catalog.Product, error) {
	var (
		mu       sync.Mutex
		products = make(map[string]catalog.Product, len(lines))
		seen     = make(map[string]struct{}, len(lines))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for _, l := range lines {
		if _, dup := seen[l.ProductID]; dup {
			continue
		}
		seen[l.ProductID] = struct{}{}

		productID := l.ProductID
		g.Go(func() error {
			p, err := lookup.Get(gctx, productID)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					return nil
				}
				return apperr.Unavailable("catalog lookup", err)
			}
			mu.Lock()
			products[productID] = p
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return products, nil
}

// EffectiveUnitPrice applies a percentage discount to one unit, rounding half
// away from zero.
func EffectiveUnitPrice(listPriceCents int64, discountPercent int) int64 {
	if discountPercent <= 0 {
		return listPriceCents
	}
	if discountPercent >= 100 {
		return 0
	}
	return roundHalfAwayFromZero(
		decimal.NewFromInt(listPriceCents).
			Mul(decimal.NewFromInt(int64(100 - discountPercent))).
			Shift(-2),
	)
}

// decimal.Round rounds half away from zero.
func roundHalfAwayFromZero(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
