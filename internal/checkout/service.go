// Package checkout converts a priced cart into a frozen order and serves the
// order history and status lifecycle.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/pricing"
)

type Shipping struct {
	Address string `json:"address"`
	Method  string `json:"method"`
}

type Request struct {
	UserID        string
	Shipping      Shipping
	PaymentMethod string
	Notes         string
	// Status is the post-payment status chosen by the caller; pending when empty.
	Status order.Status
	// CheckoutKey makes a retried checkout return the order of the first
	// successful attempt instead of creating a second one.
	CheckoutKey string
}

// OrderEvents receives orders after they have been committed.
type OrderEvents interface {
	OrderCreated(ctx context.Context, o order.Order) error
}

type CartReader interface {
	Lines(ctx context.Context, userID string) ([]cart.Line, error)
}

type Service struct {
	store   Store
	orders  order.Repository
	carts   CartReader
	catalog catalog.Lookup
	live    catalog.Lookup
	calc    *pricing.Calculator
	events  OrderEvents
	logger  *zap.Logger
	now     func() time.Time
}

type Deps struct {
	Store   Store
	Orders  order.Repository
	Carts   CartReader
	Catalog catalog.Lookup
	// Live prices the cart inside the checkout transaction. It must read the
	// product store directly; Catalog is used when it is nil.
	Live    catalog.Lookup
	Pricing *pricing.Calculator
	// Events is optional.
	Events OrderEvents
	Logger *zap.Logger
}

func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	live := d.Live
	if live == nil {
		live = d.Catalog
	}
	return &Service{
		store:   d.Store,
		orders:  d.Orders,
		carts:   d.Carts,
		catalog: d.Catalog,
		live:    live,
		calc:    d.Pricing,
		events:  d.Events,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// PricedCart returns the user's cart priced against the catalog as it is now.
func (s *Service) PricedCart(ctx context.Context, userID string) (pricing.Breakdown, error) {
	lines, err := s.carts.Lines(ctx, userID)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	return s.calc.Quote(ctx, s.catalog, lines)
}

// Materialize turns the user's cart into an order. Prices are recomputed from
// the catalog inside the transaction that locks the cart lines, so the order
// records exactly what the user was charged at this instant.
func (s *Service) Materialize(ctx context.Context, req Request) (order.Order, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return order.Order{}, apperr.New(apperr.KindInvalidArgument, "user id is required")
	}
	if req.Status == "" {
		req.Status = order.StatusPending
	}
	if !req.Status.IsInitial() {
		return order.Order{}, apperr.New(apperr.KindInvalidArgument, "orders cannot start as %s", req.Status)
	}

	if req.CheckoutKey != "" {
		existing, err := s.orders.FindByCheckoutKey(ctx, req.UserID, req.CheckoutKey)
		if err == nil {
			s.logger.Info("checkout replayed", zap.String("order_id", existing.ID), zap.String("checkout_key", req.CheckoutKey))
			return existing, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return order.Order{}, err
		}
	}

	var created order.Order
	err := s.store.InTx(ctx, func(tx Tx) error {
		lines, err := tx.LockCartLines(ctx, req.UserID)
		if err != nil {
			return err
		}
		breakdown, err := s.calc.Quote(ctx, s.live, lines)
		if err != nil {
			return err
		}
		if err := checkoutAllowed(breakdown); err != nil {
			return err
		}

		o := newOrder(req, breakdown, s.now())
		if err := tx.InsertOrder(ctx, &o); err != nil {
			return err
		}

		// lines added after the lock were not priced and stay in the cart
		if _, err := tx.ClearCart(ctx, req.UserID, lineIDs(lines)); err != nil {
			// the order is the source of truth; stray cart rows are cleaned up later
			s.logger.Warn("stale cart left after checkout",
				zap.String("user_id", req.UserID),
				zap.String("order_id", o.ID),
				zap.Int("lines", len(lines)),
				zap.Error(err),
			)
		}
		created = o
		return nil
	})
	if errors.Is(err, order.ErrDuplicateCheckout) {
		return s.orders.FindByCheckoutKey(ctx, req.UserID, req.CheckoutKey)
	}
	if err != nil {
		return order.Order{}, err
	}

	s.logger.Info("order created",
		zap.String("order_id", created.ID),
		zap.String("user_id", created.UserID),
		zap.Int64("total_cents", created.TotalCents),
		zap.String("status", string(created.Status)),
	)
	s.publish(ctx, created)
	return created, nil
}

func (s *Service) publish(ctx context.Context, o order.Order) {
	if s.events == nil {
		return
	}
	if err := s.events.OrderCreated(ctx, o); err != nil {
		s.logger.Error("publish OrderCreated failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

// checkoutAllowed reports the first reason the breakdown cannot become an
// order, checked in a fixed order: empty, out of stock, deleted products.
func checkoutAllowed(b pricing.Breakdown) error {
	if b.Empty() {
		return apperr.ErrEmptyCart
	}
	if b.Blocked() {
		var names []string
		for _, l := range b.Lines {
			if l.BlocksCheckout {
				names = append(names, l.Name)
			}
		}
		return apperr.New(apperr.KindCheckoutBlocked, "remove out-of-stock items before checkout: %s", strings.Join(names, ", "))
	}
	if len(b.Unavailable) > 0 {
		ids := make([]string, 0, len(b.Unavailable))
		for _, u := range b.Unavailable {
			ids = append(ids, u.ProductID)
		}
		return apperr.New(apperr.KindUnavailableItems, "remove items that are no longer sold: %s", strings.Join(ids, ", "))
	}
	return nil
}

func lineIDs(lines []cart.Line) []string {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ID)
	}
	return ids
}

func newOrder(req Request, b pricing.Breakdown, now time.Time) order.Order {
	o := order.Order{
		UserID:          req.UserID,
		CheckoutKey:     req.CheckoutKey,
		SubtotalCents:   b.SubtotalCents,
		ShippingCents:   b.ShippingCents,
		TaxCents:        b.TaxCents,
		TotalCents:      b.TotalCents,
		ShippingAddress: req.Shipping.Address,
		ShippingMethod:  req.Shipping.Method,
		PaymentMethod:   req.PaymentMethod,
		Status:          req.Status,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
		Lines:           make([]order.Line, 0, len(b.Lines)),
	}
	for _, l := range b.Lines {
		o.Lines = append(o.Lines, order.Line{
			ProductID:       l.ProductID,
			ProductName:     l.Name,
			Quantity:        l.Quantity,
			ListPriceCents:  l.ListPriceCents,
			DiscountPercent: l.DiscountPercent,
			UnitPriceCents:  l.UnitPriceCents,
			LineTotalCents:  l.LineTotalCents,
		})
	}
	return o
}

// Order returns one of the user's orders. Orders of other users are reported
// as not found.
func (s *Service) Order(ctx context.Context, userID, orderID string) (order.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if o.UserID != userID {
		return order.Order{}, apperr.New(apperr.KindNotFound, "order %s not found", orderID)
	}
	return o, nil
}

func (s *Service) Orders(ctx context.Context, userID string) ([]order.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// transitionAttempts bounds how often Transition re-reads an order whose
// status moved underneath it.
const transitionAttempts = 3

// Transition moves an order along the status machine. Repeating the current
// status is a no-op so redelivered fulfillment updates are harmless. When a
// concurrent update wins the compare-and-set, the order is re-read and the
// move re-validated; if it keeps losing the error wraps order.ErrStatusChanged.
func (s *Service) Transition(ctx context.Context, orderID string, to order.Status) (order.Order, error) {
	for attempt := 1; ; attempt++ {
		o, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return order.Order{}, err
		}
		if o.Status == to {
			return o, nil
		}
		if !o.Status.CanTransitionTo(to) {
			return order.Order{}, apperr.New(apperr.KindInvalidTransition, "order %s cannot move from %s to %s", orderID, o.Status, to)
		}

		updated, err := s.orders.UpdateStatus(ctx, orderID, o.Status, to)
		if errors.Is(err, order.ErrStatusChanged) {
			if attempt < transitionAttempts {
				continue
			}
			return order.Order{}, &apperr.Error{
				Kind: apperr.KindInvalidTransition,
				Msg:  fmt.Sprintf("order %s changed status concurrently, reload and retry", orderID),
				Err:  order.ErrStatusChanged,
			}
		}
		if err != nil {
			return order.Order{}, err
		}

		s.logger.Info("order status changed",
			zap.String("order_id", orderID),
			zap.String("from", string(o.Status)),
			zap.String("to", string(to)),
		)
		return updated, nil
	}
}
