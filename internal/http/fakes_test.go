package httpapi

import (
	"context"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/pricing"
)

type cartCall struct {
	op, userID, id string
	qty            int
}

type fakeCart struct {
	calls []cartCall
	err   error
}

func (f *fakeCart) AddToCart(ctx context.Context, userID, productID string, quantity int) (cart.Line, error) {
	f.calls = append(f.calls, cartCall{op: "add", userID: userID, id: productID, qty: quantity})
	if f.err != nil {
		return cart.Line{}, f.err
	}
	return cart.Line{ID: "line-1", UserID: userID, ProductID: productID, Quantity: quantity}, nil
}

func (f *fakeCart) UpdateQuantity(ctx context.Context, userID, lineID string, quantity int) (cart.Line, error) {
	f.calls = append(f.calls, cartCall{op: "update", userID: userID, id: lineID, qty: quantity})
	if f.err != nil {
		return cart.Line{}, f.err
	}
	return cart.Line{ID: lineID, UserID: userID, Quantity: quantity}, nil
}

func (f *fakeCart) RemoveItem(ctx context.Context, userID, lineID string) error {
	f.calls = append(f.calls, cartCall{op: "remove", userID: userID, id: lineID})
	return f.err
}

func (f *fakeCart) ClearCart(ctx context.Context, userID string) error {
	f.calls = append(f.calls, cartCall{op: "clear", userID: userID})
	return f.err
}

type fakeOrders struct {
	breakdown   pricing.Breakdown
	lastRequest checkout.Request
	orders      map[string]order.Order
	err         error
	panicOn     string
}

func (f *fakeOrders) PricedCart(ctx context.Context, userID string) (pricing.Breakdown, error) {
	if f.panicOn == "PricedCart" {
		panic("boom")
	}
	return f.breakdown, f.err
}

func (f *fakeOrders) Materialize(ctx context.Context, req checkout.Request) (order.Order, error) {
	f.lastRequest = req
	if f.err != nil {
		return order.Order{}, f.err
	}
	status := req.Status
	if status == "" {
		status = order.StatusPending
	}
	return order.Order{ID: "o1", UserID: req.UserID, Status: status, TotalCents: 5891}, nil
}

func (f *fakeOrders) Order(ctx context.Context, userID, orderID string) (order.Order, error) {
	o, ok := f.orders[orderID]
	if !ok || o.UserID != userID {
		return order.Order{}, apperr.New(apperr.KindNotFound, "order %s not found", orderID)
	}
	return o, nil
}

func (f *fakeOrders) Orders(ctx context.Context, userID string) ([]order.Order, error) {
	out := []order.Order{}
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, f.err
}

func (f *fakeOrders) Transition(ctx context.Context, orderID string, to order.Status) (order.Order, error) {
	if f.err != nil {
		return order.Order{}, f.err
	}
	o, ok := f.orders[orderID]
	if !ok {
		return order.Order{}, apperr.ErrNotFound
	}
	o.Status = to
	return o, nil
}

type fakeCatalog struct {
	products   map[string]catalog.Product
	lastFilter catalog.Filter
	saved      []catalog.Product
	deleted    []string
	err        error
}

func (f *fakeCatalog) Get(ctx context.Context, productID string) (catalog.Product, error) {
	p, ok := f.products[productID]
	if !ok {
		return catalog.Product{}, apperr.New(apperr.KindNotFound, "product %s not found", productID)
	}
	return p, nil
}

func (f *fakeCatalog) List(ctx context.Context, filter catalog.Filter) ([]catalog.Product, error) {
	f.lastFilter = filter
	out := []catalog.Product{}
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, f.err
}

func (f *fakeCatalog) Save(ctx context.Context, p *catalog.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	f.saved = append(f.saved, *p)
	return f.err
}

func (f *fakeCatalog) Delete(ctx context.Context, productID string) error {
	f.deleted = append(f.deleted, productID)
	return f.err
}
