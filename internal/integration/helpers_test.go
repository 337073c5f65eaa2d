//go:build integration
// +build integration

package integration_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/pricing"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/testutil"
)

const maxLineQuantity = 99

type stack struct {
	pg       *testutil.Postgres
	catalog  *catalog.Service
	carts    *cart.PostgresRepository
	orders   *order.PostgresRepository
	cart     *cart.Reconciler
	checkout *checkout.Service
}

func newStack(t *testing.T, events checkout.OrderEvents) *stack {
	t.Helper()
	return newStackOn(t, testutil.StartPostgres(t), events)
}

func newStackOn(t *testing.T, pg *testutil.Postgres, events checkout.OrderEvents) *stack {
	t.Helper()
	logger := zaptest.NewLogger(t)

	s := &stack{pg: pg}
	repo := catalog.NewPostgresRepository(pg.DB)
	s.catalog = catalog.NewService(repo, nil, logger)
	s.carts = cart.NewPostgresRepository(pg.Pool, maxLineQuantity)
	s.orders = order.NewPostgresRepository(pg.Pool)
	s.cart = cart.NewReconciler(s.carts, s.catalog, logger)
	s.checkout = checkout.NewService(checkout.Deps{
		Store:   checkout.NewPostgresStore(pg.Pool, s.carts, s.orders),
		Orders:  s.orders,
		Carts:   s.carts,
		Catalog: s.catalog,
		Live:    repo,
		Pricing: pricing.NewCalculator(pricing.Config{
			FreeShippingThreshold: 7500,
			FlatShippingFee:       599,
			TaxRate:               decimal.RequireFromString("0.08"),
		}),
		Events: events,
		Logger: logger,
	})
	return s
}

func (s *stack) seed(t *testing.T, products ...catalog.Product) {
	t.Helper()
	for i := range products {
		require.NoError(t, s.catalog.Save(context.Background(), &products[i]))
	}
}

func desk() catalog.Product {
	return catalog.Product{ID: "desk", Name: "Desk", Category: "office", PriceCents: 2000, InStock: true}
}

func chair() catalog.Product {
	return catalog.Product{ID: "chair", Name: "Chair", Category: "office", PriceCents: 1000, DiscountPercent: 10, InStock: true}
}
