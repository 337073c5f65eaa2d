package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
)

const (
	orderCreatedEventName    = "OrderCreated"
	orderCreatedEventVersion = 1
	orderCreatedSchema       = "contracts/events/order/OrderCreated.v1.payload.schema.json"
)

// OrderItem is an order line as seen by downstream consumers. Prices are the
// ones frozen at checkout, in cents.
type OrderItem struct {
	ProductID      string `json:"productId"`
	ProductName    string `json:"productName"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	LineTotalCents int64  `json:"lineTotalCents"`
}

type OrderCreatedPayload struct {
	OrderID       string      `json:"orderId"`
	UserID        string      `json:"userId"`
	Items         []OrderItem `json:"items"`
	SubtotalCents int64       `json:"subtotalCents"`
	ShippingCents int64       `json:"shippingCents"`
	TaxCents      int64       `json:"taxCents"`
	TotalCents    int64       `json:"totalCents"`
	Status        string      `json:"status"`
	Timestamp     time.Time   `json:"timestamp"`
}

type OrderCreatedEnvelope = EventEnvelope[OrderCreatedPayload]

// LegacyOrderCreated is the flat pre-envelope message shape, still published
// when enveloped events are switched off.
type LegacyOrderCreated struct {
	EventType string `json:"eventType"`
	OrderCreatedPayload
}

func orderCreatedPayload(o order.Order) OrderCreatedPayload {
	items := make([]OrderItem, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, OrderItem{
			ProductID:      l.ProductID,
			ProductName:    l.ProductName,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
			LineTotalCents: l.LineTotalCents,
		})
	}
	return OrderCreatedPayload{
		OrderID:       o.ID,
		UserID:        o.UserID,
		Items:         items,
		SubtotalCents: o.SubtotalCents,
		ShippingCents: o.ShippingCents,
		TaxCents:      o.TaxCents,
		TotalCents:    o.TotalCents,
		Status:        string(o.Status),
		Timestamp:     o.CreatedAt,
	}
}

func buildOrderCreatedEnvelope(o order.Order, seq int64, correlationID, producer string, occurredAt time.Time) OrderCreatedEnvelope {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return OrderCreatedEnvelope{
		EventName:     orderCreatedEventName,
		EventVersion:  orderCreatedEventVersion,
		EventID:       uuid.NewString(),
		CorrelationID: correlationID,
		Producer:      producer,
		PartitionKey:  o.ID,
		Sequence:      &seq,
		OccurredAt:    occurredAt,
		Schema:        orderCreatedSchema,
		Payload:       orderCreatedPayload(o),
	}
}
