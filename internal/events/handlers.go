package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
)

// HandlerFunc processes one message body. A nil return acks the message.
type HandlerFunc func(ctx context.Context, body []byte) error

// ErrMalformed marks messages that can never be processed; they are dropped
// instead of requeued.
var ErrMalformed = errors.New("malformed message")

type StatusApplier interface {
	Transition(ctx context.Context, orderID string, to order.Status) (order.Order, error)
}

type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStatusHandler applies fulfillment status updates. Enveloped messages
// are deduplicated per order with the consumer checkpoint; a redelivered or
// out-of-date sequence is acked without touching the order.
func OrderStatusHandler(db TxBeginner, dedup *DedupRepository, applier StatusApplier, logger *zap.Logger) HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, body []byte) error {
		msg, err := parseOrderStatus(body)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		status, err := order.ParseStatus(msg.Payload.Status)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		partition := msg.partitionKey()
		seq := msg.sequence()
		log := logger.With(
			zap.String("order_id", msg.Payload.OrderID),
			zap.String("partition", partition),
			zap.Int64("seq", seq),
		)

		tx, err := db.Begin(ctx)
		if err != nil {
			return apperr.Unavailable("begin status tx", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		local := dedup.WithExecutor(tx)
		if seq != 0 {
			last, ok, err := local.LastSequence(ctx, orderStatusConsumerName, partition)
			if err != nil {
				return apperr.Unavailable("read checkpoint", err)
			}
			if ok && seq <= last {
				log.Debug("skip duplicate status update", zap.Int64("last", last))
				return nil
			}
			if ok && seq > last+1 {
				log.Warn("sequence gap", zap.Int64("last", last))
			}
		}

		if _, err := applier.Transition(ctx, msg.Payload.OrderID, status); err != nil {
			// a lost status race is requeued and re-evaluated on redelivery
			if apperr.Retryable(err) || errors.Is(err, order.ErrStatusChanged) {
				return err
			}
			// not retryable: record it as consumed so redelivery does not loop
			log.Warn("order status update rejected", zap.String("status", string(status)), zap.Error(err))
		}

		if seq != 0 {
			if err := local.Advance(ctx, orderStatusConsumerName, partition, seq); err != nil {
				return apperr.Unavailable("advance checkpoint", err)
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return apperr.Unavailable("commit checkpoint", err)
		}
		return nil
	}
}
