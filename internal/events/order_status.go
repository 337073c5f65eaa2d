package events

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	orderStatusEventName    = "OrderStatusChanged"
	orderStatusEventVersion = 1
)

// OrderStatusPayload is sent by fulfillment when an order moves along its
// lifecycle.
type OrderStatusPayload struct {
	OrderID   string    `json:"orderId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderStatusEnvelope = EventEnvelope[OrderStatusPayload]

type orderStatusMessage struct {
	Envelope *OrderStatusEnvelope
	Payload  OrderStatusPayload
}

func (m orderStatusMessage) partitionKey() string {
	if m.Envelope != nil && m.Envelope.PartitionKey != "" {
		return m.Envelope.PartitionKey
	}
	return m.Payload.OrderID
}

func (m orderStatusMessage) sequence() int64 {
	if m.Envelope == nil {
		return 0
	}
	return m.Envelope.seq()
}

// parseOrderStatus accepts both the enveloped and the bare payload shape.
func parseOrderStatus(body []byte) (orderStatusMessage, error) {
	if isEnveloped(body) {
		var env OrderStatusEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return orderStatusMessage{}, fmt.Errorf("unmarshal OrderStatusChanged envelope: %w", err)
		}
		if err := env.Validate(orderStatusEventName, orderStatusEventVersion); err != nil {
			return orderStatusMessage{}, err
		}
		return orderStatusMessage{Envelope: &env, Payload: env.Payload}, checkStatusPayload(env.Payload)
	}

	var p OrderStatusPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return orderStatusMessage{}, fmt.Errorf("unmarshal OrderStatusChanged: %w", err)
	}
	return orderStatusMessage{Payload: p}, checkStatusPayload(p)
}

func checkStatusPayload(p OrderStatusPayload) error {
	if p.OrderID == "" {
		return fmt.Errorf("missing orderId")
	}
	if p.Status == "" {
		return fmt.Errorf("missing status")
	}
	return nil
}
