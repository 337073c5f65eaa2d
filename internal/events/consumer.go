package events

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer drains one queue and hands each delivery to a HandlerFunc.
type Consumer struct {
	ch     *amqp.Channel
	queue  string
	logger *zap.Logger
	done   chan struct{}
}

// StartStatusConsumer declares the status queue, binds it to the events
// exchange and starts consuming until ctx is cancelled or Close is called.
func StartStatusConsumer(ctx context.Context, conn *amqp.Connection, handler HandlerFunc, logger *zap.Logger) (*Consumer, error) {
	return startConsumer(ctx, conn, StatusQueueName(), OrderStatusRoutingKey, handler, logger)
}

func startConsumer(ctx context.Context, conn *amqp.Connection, queue, routingKey string, handler HandlerFunc, logger *zap.Logger) (*Consumer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	fail := func(step string, err error) (*Consumer, error) {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	if err := declareEventsExchange(ch); err != nil {
		return fail("declare events exchange", err)
	}
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fail("queue declare", err)
	}
	if err := ch.QueueBind(queue, routingKey, EventsExchange, false, nil); err != nil {
		return fail("queue bind", err)
	}
	if err := ch.Qos(defaultPrefetch, 0, false); err != nil {
		return fail("qos", err)
	}

	msgs, err := ch.Consume(
		queue,
		storefrontServiceName, // consumer tag
		false,                 // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fail("consume", err)
	}

	c := &Consumer{ch: ch, queue: queue, logger: logger.With(zap.String("queue", queue)), done: make(chan struct{})}
	go c.run(ctx, msgs, handler)
	return c, nil
}

func (c *Consumer) run(ctx context.Context, msgs <-chan amqp.Delivery, handler HandlerFunc) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("stopping consumer")
			return
		case d, ok := <-msgs:
			if !ok {
				c.logger.Info("messages channel closed")
				return
			}
			dispatch(ctx, handler, d, c.logger)
		}
	}
}

// Close stops the consumer and waits for the in-flight message to finish.
func (c *Consumer) Close() error {
	err := c.ch.Close()
	<-c.done
	return err
}

func dispatch(ctx context.Context, handler HandlerFunc, d amqp.Delivery, logger *zap.Logger) {
	err := handler(ctx, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			logger.Warn("ack failed", zap.Error(ackErr))
		}
	case errors.Is(err, ErrMalformed):
		logger.Warn("dropping malformed message", zap.String("message_id", d.MessageId), zap.Error(err))
		_ = d.Nack(false, false)
	default:
		logger.Error("handle message failed, requeueing", zap.String("message_id", d.MessageId), zap.Error(err))
		_ = d.Nack(false, true)
	}
}
