// Package httpapi is the storefront REST surface. Handlers translate JSON to
// engine calls and engine error kinds to status codes; no pricing happens here.
package httpapi

import (
	"context"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/pricing"
)

type CartService interface {
	AddToCart(ctx context.Context, userID, productID string, quantity int) (cart.Line, error)
	UpdateQuantity(ctx context.Context, userID, lineID string, quantity int) (cart.Line, error)
	RemoveItem(ctx context.Context, userID, lineID string) error
	ClearCart(ctx context.Context, userID string) error
}

type OrderService interface {
	PricedCart(ctx context.Context, userID string) (pricing.Breakdown, error)
	Materialize(ctx context.Context, req checkout.Request) (order.Order, error)
	Order(ctx context.Context, userID, orderID string) (order.Order, error)
	Orders(ctx context.Context, userID string) ([]order.Order, error)
	Transition(ctx context.Context, orderID string, to order.Status) (order.Order, error)
}

type CatalogService interface {
	Get(ctx context.Context, productID string) (catalog.Product, error)
	List(ctx context.Context, f catalog.Filter) ([]catalog.Product, error)
	Save(ctx context.Context, p *catalog.Product) error
	Delete(ctx context.Context, productID string) error
}

type Handler struct {
	cart    CartService
	orders  OrderService
	catalog CatalogService
	ping    func(ctx context.Context) error
	logger  *zap.Logger
}

func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cart:    d.Cart,
		orders:  d.Orders,
		catalog: d.Catalog,
		ping:    d.Ping,
		logger:  logger,
	}
}
