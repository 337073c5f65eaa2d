package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
)

const publishTimeout = 3 * time.Second

type publishChannel interface {
	exchangeDeclarer
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type sequencer interface {
	NextSequence(ctx context.Context, partitionKey string) (int64, error)
}

// Publisher emits order events to the shared topic exchange. It implements
// checkout.OrderEvents.
type Publisher struct {
	mu               sync.Mutex
	ch               publishChannel
	seq              sequencer
	publishEnveloped bool
	producer         string
	now              func() time.Time
}

type PublisherOptions struct {
	PublishEnveloped bool
	Producer         string
}

func NewPublisher(conn *amqp.Connection, seq *SequenceRepository, opts PublisherOptions) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := newPublisher(ch, seq, opts)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return p, nil
}

func newPublisher(ch publishChannel, seq sequencer, opts PublisherOptions) (*Publisher, error) {
	if err := declareEventsExchange(ch); err != nil {
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}
	producer := opts.Producer
	if producer == "" {
		producer = storefrontServiceName
	}
	return &Publisher{
		ch:               ch,
		seq:              seq,
		publishEnveloped: opts.PublishEnveloped,
		producer:         producer,
		now:              func() time.Time { return time.Now().UTC() },
	}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// OrderCreated publishes the committed order with its frozen prices.
func (p *Publisher) OrderCreated(ctx context.Context, o order.Order) error {
	if !p.publishEnveloped {
		body, err := json.Marshal(LegacyOrderCreated{
			EventType:           orderCreatedEventName,
			OrderCreatedPayload: orderCreatedPayload(o),
		})
		if err != nil {
			return fmt.Errorf("marshal OrderCreated: %w", err)
		}
		return p.publishJSON(ctx, OrderCreatedRoutingKey, body)
	}

	seq, err := p.seq.NextSequence(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	env := buildOrderCreatedEnvelope(o, seq, CorrelationID(ctx), p.producer, p.now())
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal OrderCreated envelope: %w", err)
	}
	return p.publishJSON(ctx, OrderCreatedRoutingKey, body)
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    p.now(),
			Body:         body,
		},
	)
}
