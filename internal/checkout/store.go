package checkout

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
)

// Tx is the unit of work used to turn a cart into an order.
type Tx interface {
	LockCartLines(ctx context.Context, userID string) ([]cart.Line, error)
	InsertOrder(ctx context.Context, o *order.Order) error
	// ClearCart deletes the given lines of the user, normally the ones
	// returned by LockCartLines. A failure is confined to the clear itself and
	// the order insert still commits.
	ClearCart(ctx context.Context, userID string, lineIDs []string) (int64, error)
}

// Store runs fn in a transaction that commits only when fn returns nil.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type PostgresStore struct {
	db     TxBeginner
	carts  *cart.PostgresRepository
	orders *order.PostgresRepository
}

func NewPostgresStore(db TxBeginner, carts *cart.PostgresRepository, orders *order.PostgresRepository) *PostgresStore {
	return &PostgresStore{db: db, carts: carts, orders: orders}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperr.Unavailable("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{
		tx:     tx,
		carts:  s.carts.WithExecutor(tx),
		orders: s.orders.WithExecutor(tx),
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Unavailable("commit checkout", err)
	}
	return nil
}

type pgTx struct {
	tx     pgx.Tx
	carts  *cart.PostgresRepository
	orders *order.PostgresRepository
}

func (t *pgTx) LockCartLines(ctx context.Context, userID string) ([]cart.Line, error) {
	return t.carts.LockLines(ctx, userID)
}

func (t *pgTx) InsertOrder(ctx context.Context, o *order.Order) error {
	return t.orders.Insert(ctx, o)
}

// ClearCart runs behind a savepoint so a failed delete can be undone without
// aborting the order that was inserted before it.
func (t *pgTx) ClearCart(ctx context.Context, userID string, lineIDs []string) (int64, error) {
	if _, err := t.tx.Exec(ctx, `SAVEPOINT clear_cart`); err != nil {
		return 0, fmt.Errorf("savepoint: %w", err)
	}

	n, err := t.carts.ClearLines(ctx, userID, lineIDs)
	if err != nil {
		if _, rbErr := t.tx.Exec(ctx, `ROLLBACK TO SAVEPOINT clear_cart`); rbErr != nil {
			return 0, fmt.Errorf("rollback to savepoint: %w (clear: %v)", rbErr, err)
		}
		return 0, err
	}

	if _, err := t.tx.Exec(ctx, `RELEASE SAVEPOINT clear_cart`); err != nil {
		return 0, fmt.Errorf("release savepoint: %w", err)
	}
	return n, nil
}
