package order

import "time"

// Line is a purchased product with its price captured at checkout. None of
// its fields follow later catalog changes.
type Line struct {
	ID              string `json:"lineId"`
	Position        int    `json:"position"`
	ProductID       string `json:"productId"`
	ProductName     string `json:"productName"`
	Quantity        int    `json:"quantity"`
	ListPriceCents  int64  `json:"listPriceCents"`
	DiscountPercent int    `json:"discountPercent"`
	UnitPriceCents  int64  `json:"unitPriceCents"`
	LineTotalCents  int64  `json:"lineTotalCents"`
}

type Order struct {
	ID              string    `json:"orderId"`
	UserID          string    `json:"userId"`
	CheckoutKey     string    `json:"checkoutKey,omitempty"`
	SubtotalCents   int64     `json:"subtotalCents"`
	ShippingCents   int64     `json:"shippingCents"`
	TaxCents        int64     `json:"taxCents"`
	TotalCents      int64     `json:"totalCents"`
	ShippingAddress string    `json:"shippingAddress"`
	ShippingMethod  string    `json:"shippingMethod"`
	PaymentMethod   string    `json:"paymentMethod"`
	Status          Status    `json:"status"`
	Notes           string    `json:"notes"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Lines           []Line    `json:"lines"`
}
