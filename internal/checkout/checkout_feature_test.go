package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/pricing"
)

type checkoutTestContext struct {
	db      *memDB
	catalog *memCatalog
	pricing pricing.Config
	order   order.Order
	err     error
}

func (c *checkoutTestContext) reset() {
	c.db = newMemDB()
	c.catalog = newMemCatalog()
	c.pricing = pricing.Config{}
	c.order = order.Order{}
	c.err = nil
}

func (c *checkoutTestContext) service() *Service {
	return NewService(Deps{
		Store:   c.db,
		Orders:  c.db,
		Carts:   c.db,
		Catalog: c.catalog,
		Pricing: pricing.NewCalculator(c.pricing),
	})
}

func (c *checkoutTestContext) theStoreCharges(fee, threshold int, rate string) error {
	tax, err := decimal.NewFromString(rate)
	if err != nil {
		return err
	}
	c.pricing = pricing.Config{FreeShippingThreshold: int64(threshold), FlatShippingFee: int64(fee), TaxRate: tax}
	return nil
}

func (c *checkoutTestContext) theCatalogHasTheseProducts(table *godog.Table) error {
	for _, row := range table.Rows[1:] {
		price, err := strconv.ParseInt(row.Cells[2].Value, 10, 64)
		if err != nil {
			return err
		}
		discount, err := strconv.Atoi(row.Cells[3].Value)
		if err != nil {
			return err
		}
		c.catalog.set(catalog.Product{
			ID:              row.Cells[0].Value,
			Name:            row.Cells[1].Value,
			PriceCents:      price,
			DiscountPercent: discount,
			InStock:         row.Cells[4].Value == "true",
		})
	}
	return nil
}

func (c *checkoutTestContext) userHasInTheCart(userID string, qty int, productID string) error {
	c.db.addLine(userID, productID, qty)
	return nil
}

func (c *checkoutTestContext) productIsDeleted(productID string) error {
	c.catalog.remove(productID)
	return nil
}

func (c *checkoutTestContext) clearingCartsFails() error {
	c.db.clearErr = errors.New("lock timeout")
	return nil
}

func (c *checkoutTestContext) userChecksOut(userID string) error {
	c.order, c.err = c.service().Materialize(context.Background(), Request{
		UserID:        userID,
		Shipping:      Shipping{Address: "1 Main St", Method: "standard"},
		PaymentMethod: "card",
	})
	return nil
}

func (c *checkoutTestContext) thePriceOfProductChangesTo(productID string, price int) error {
	p, err := c.catalog.Get(context.Background(), productID)
	if err != nil {
		return err
	}
	p.PriceCents = int64(price)
	c.catalog.set(p)
	return nil
}

func (c *checkoutTestContext) theOrderTotalIs(total int) error {
	if c.err != nil {
		return fmt.Errorf("expected an order, got error: %v", c.err)
	}
	if c.order.TotalCents != int64(total) {
		return fmt.Errorf("expected total %d, got %d", total, c.order.TotalCents)
	}
	return nil
}

func (c *checkoutTestContext) theOrderBreakdownIs(subtotal, shipping, tax int) error {
	o := c.order
	if o.SubtotalCents != int64(subtotal) || o.ShippingCents != int64(shipping) || o.TaxCents != int64(tax) {
		return fmt.Errorf("expected %d/%d/%d, got %d/%d/%d", subtotal, shipping, tax, o.SubtotalCents, o.ShippingCents, o.TaxCents)
	}
	return nil
}

func (c *checkoutTestContext) theOrderHasUnitPrices(first, second int) error {
	return unitPrices(c.order, int64(first), int64(second))
}

func (c *checkoutTestContext) theStoredOrderHasUnitPrices(price int) error {
	stored, err := c.service().Order(context.Background(), c.order.UserID, c.order.ID)
	if err != nil {
		return err
	}
	return unitPrices(stored, int64(price))
}

func unitPrices(o order.Order, want ...int64) error {
	if len(o.Lines) != len(want) {
		return fmt.Errorf("expected %d lines, got %d", len(want), len(o.Lines))
	}
	for i, w := range want {
		if o.Lines[i].UnitPriceCents != w {
			return fmt.Errorf("line %d: expected unit price %d, got %d", i+1, w, o.Lines[i].UnitPriceCents)
		}
	}
	return nil
}

func (c *checkoutTestContext) theCartIsEmpty(userID string) error {
	return c.theCartStillHasLines(userID, 0)
}

func (c *checkoutTestContext) theCartStillHasLines(userID string, n int) error {
	lines, err := c.db.Lines(context.Background(), userID)
	if err != nil {
		return err
	}
	if len(lines) != n {
		return fmt.Errorf("expected %d cart lines, got %d", n, len(lines))
	}
	return nil
}

func (c *checkoutTestContext) checkoutFailsWith(kind string) error {
	if c.err == nil {
		return errors.New("expected checkout to fail but it succeeded")
	}
	if got := apperr.KindOf(c.err); string(got) != kind {
		return fmt.Errorf("expected %s, got %s (%v)", kind, got, c.err)
	}
	return nil
}

func (c *checkoutTestContext) noOrderExists() error {
	if n := c.db.orderCount(); n != 0 {
		return fmt.Errorf("expected no orders, found %d", n)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &checkoutTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^the store charges (\d+) shipping below (\d+) and ([0-9.]+) tax$`, tc.theStoreCharges)
	ctx.Step(`^the catalog has these products:$`, tc.theCatalogHasTheseProducts)
	ctx.Step(`^user "([^"]*)" has (\d+) of product "([^"]*)" in the cart$`, tc.userHasInTheCart)
	ctx.Step(`^product "([^"]*)" is deleted from the catalog$`, tc.productIsDeleted)
	ctx.Step(`^clearing carts fails$`, tc.clearingCartsFails)

	// When steps
	ctx.Step(`^user "([^"]*)" checks out$`, tc.userChecksOut)
	ctx.Step(`^the price of product "([^"]*)" changes to (\d+)$`, tc.thePriceOfProductChangesTo)

	// Then steps
	ctx.Step(`^the order total is (\d+)$`, tc.theOrderTotalIs)
	ctx.Step(`^the order subtotal is (\d+), shipping (\d+) and tax (\d+)$`, tc.theOrderBreakdownIs)
	ctx.Step(`^the order has unit prices (\d+) and (\d+)$`, tc.theOrderHasUnitPrices)
	ctx.Step(`^the stored order has unit prices (\d+)$`, tc.theStoredOrderHasUnitPrices)
	ctx.Step(`^the cart of user "([^"]*)" is empty$`, tc.theCartIsEmpty)
	ctx.Step(`^the cart of user "([^"]*)" still has (\d+) lines?$`, tc.theCartStillHasLines)
	ctx.Step(`^checkout fails with "([^"]*)"$`, tc.checkoutFailsWith)
	ctx.Step(`^no order exists$`, tc.noOrderExists)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/checkout.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
