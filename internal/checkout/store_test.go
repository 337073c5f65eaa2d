package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
)

func newStoreMock(t *testing.T) (pgxmock.PgxPoolIface, *PostgresStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresStore(mock, cart.NewPostgresRepository(mock, 99), order.NewPostgresRepository(mock))
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func runCheckoutTx(ctx context.Context, s *PostgresStore) (int64, error) {
	var cleared int64
	err := s.InTx(ctx, func(tx Tx) error {
		lines, err := tx.LockCartLines(ctx, "u1")
		if err != nil {
			return err
		}
		o := &order.Order{UserID: "u1", Status: order.StatusPending, CreatedAt: time.Now(), Lines: []order.Line{
			{ProductID: lines[0].ProductID, ProductName: "Desk", Quantity: lines[0].Quantity, UnitPriceCents: 100, LineTotalCents: 100},
		}}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		cleared, _ = tx.ClearCart(ctx, "u1", []string{lines[0].ID})
		return nil
	})
	return cleared, err
}

// expectLockAndInsert returns the id of the locked cart line.
func expectLockAndInsert(mock pgxmock.PgxPoolIface) uuid.UUID {
	now := time.Now()
	lineID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM cart_lines(.+)FOR UPDATE`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "product_id", "quantity", "created_at", "updated_at"}).
			AddRow(lineID, "u1", "A", 1, now, now))
	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(anyArgs(13)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO order_lines`).
		WithArgs(anyArgs(10)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	return lineID
}

func TestPostgresStore_CommitsOrderAndClearsCart(t *testing.T) {
	mock, store := newStoreMock(t)

	lineID := expectLockAndInsert(mock)
	mock.ExpectExec(`SAVEPOINT clear_cart`).WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectExec(`DELETE FROM cart_lines WHERE user_id=\$1 AND id = ANY\(\$2\)`).
		WithArgs("u1", []uuid.UUID{lineID}).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`RELEASE SAVEPOINT clear_cart`).WillReturnResult(pgxmock.NewResult("RELEASE", 0))
	mock.ExpectCommit()

	cleared, err := runCheckoutTx(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ClearFailureRollsBackToSavepointAndCommits(t *testing.T) {
	mock, store := newStoreMock(t)

	lineID := expectLockAndInsert(mock)
	mock.ExpectExec(`SAVEPOINT clear_cart`).WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectExec(`DELETE FROM cart_lines`).
		WithArgs("u1", []uuid.UUID{lineID}).
		WillReturnError(errors.New("lock timeout"))
	mock.ExpectExec(`ROLLBACK TO SAVEPOINT clear_cart`).WillReturnResult(pgxmock.NewResult("ROLLBACK", 0))
	mock.ExpectCommit()

	cleared, err := runCheckoutTx(context.Background(), store)
	require.NoError(t, err)
	assert.Zero(t, cleared)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertFailureRollsBack(t *testing.T) {
	mock, store := newStoreMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "product_id", "quantity", "created_at", "updated_at"}).
			AddRow(uuid.New(), "u1", "A", 1, now, now))
	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(anyArgs(13)...).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := runCheckoutTx(context.Background(), store)
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	assert.ErrorContains(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BeginFailure(t *testing.T) {
	mock, store := newStoreMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	err := store.InTx(context.Background(), func(Tx) error { return nil })
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}
