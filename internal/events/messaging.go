package events

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange          = "ecommerce.events"
	OrderCreatedRoutingKey  = "order.created.v1"
	OrderStatusRoutingKey   = "order.status.v1"
	storefrontServiceName   = "storefront-go"
	orderStatusConsumerName = "storefront-order-status"
	defaultPrefetch         = 10
)

func serviceQueue(serviceName, routingKey string) string {
	return serviceName + "." + routingKey
}

// StatusQueueName is the durable queue the fulfillment status consumer reads.
func StatusQueueName() string {
	return serviceQueue(storefrontServiceName, OrderStatusRoutingKey)
}

type exchangeDeclarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
}

func declareEventsExchange(ch exchangeDeclarer) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}
