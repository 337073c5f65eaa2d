package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
)

var (
	// ErrDuplicateCheckout means an order with the same checkout key already
	// exists for the user. The surrounding transaction is aborted.
	ErrDuplicateCheckout = errors.New("duplicate checkout key")
	// ErrStatusChanged means a compare-and-set status update lost a race.
	ErrStatusChanged = errors.New("order status changed concurrently")
)

const uniqueViolation = "23505"

// Executor matches the methods shared by *pgxpool.Pool and pgx.Tx.
type Executor interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, orderID string) (Order, error)
	FindByCheckoutKey(ctx context.Context, userID, key string) (Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	UpdateStatus(ctx context.Context, orderID string, from, to Status) (Order, error)
}

type PostgresRepository struct {
	exec Executor
}

func NewPostgresRepository(exec Executor) *PostgresRepository {
	return &PostgresRepository{exec: exec}
}

// WithExecutor returns a shallow copy using the provided executor (e.g., a transaction).
func (r *PostgresRepository) WithExecutor(exec Executor) *PostgresRepository {
	return &PostgresRepository{exec: exec}
}

// Insert writes the order row and its lines. It assigns missing ids and line
// positions. Callers run it inside a transaction so a partial order is never
// visible.
func (r *PostgresRepository) Insert(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	orderID, err := uuid.Parse(o.ID)
	if err != nil {
		return fmt.Errorf("order id: %w", err)
	}

	var checkoutKey *string
	if o.CheckoutKey != "" {
		checkoutKey = &o.CheckoutKey
	}

	_, err = r.exec.Exec(ctx, `
		INSERT INTO orders (id, user_id, checkout_key, subtotal_cents, shipping_cents, tax_cents, total_cents,
			shipping_address, shipping_method, payment_method, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
	`, orderID, o.UserID, checkoutKey, o.SubtotalCents, o.ShippingCents, o.TaxCents, o.TotalCents,
		o.ShippingAddress, o.ShippingMethod, o.PaymentMethod, string(o.Status), o.Notes, o.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateCheckout
		}
		return apperr.Unavailable("insert order", err)
	}
	o.UpdatedAt = o.CreatedAt

	for i := range o.Lines {
		l := &o.Lines[i]
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		l.Position = i + 1
		_, err = r.exec.Exec(ctx, `
			INSERT INTO order_lines (id, order_id, position, product_id, product_name, quantity,
				list_price_cents, discount_percent, unit_price_cents, line_total_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, l.ID, orderID, l.Position, l.ProductID, l.ProductName, l.Quantity,
			l.ListPriceCents, l.DiscountPercent, l.UnitPriceCents, l.LineTotalCents)
		if err != nil {
			return apperr.Unavailable("insert order line", err)
		}
	}
	return nil
}

const orderColumns = `id, user_id, COALESCE(checkout_key, ''), subtotal_cents, shipping_cents, tax_cents, total_cents,
	shipping_address, shipping_method, payment_method, status, notes, created_at, updated_at`

func (r *PostgresRepository) Get(ctx context.Context, orderID string) (Order, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return Order{}, apperr.New(apperr.KindNotFound, "order %s not found", orderID)
	}

	o, err := scanOrder(r.exec.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, apperr.New(apperr.KindNotFound, "order %s not found", orderID)
		}
		return Order{}, apperr.Unavailable("select order", err)
	}
	if err := r.loadLines(ctx, []*Order{&o}); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *PostgresRepository) FindByCheckoutKey(ctx context.Context, userID, key string) (Order, error) {
	o, err := scanOrder(r.exec.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id=$1 AND checkout_key=$2`, userID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, apperr.New(apperr.KindNotFound, "no order for checkout key %s", key)
		}
		return Order{}, apperr.Unavailable("select order by checkout key", err)
	}
	if err := r.loadLines(ctx, []*Order{&o}); err != nil {
		return Order{}, err
	}
	return o, nil
}

// ListByUser returns the user's orders newest first, lines included.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.exec.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, apperr.Unavailable("select orders", err)
	}
	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, apperr.Unavailable("scan order", err)
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("rows", err)
	}

	ptrs := make([]*Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := r.loadLines(ctx, ptrs); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus moves the order from one status to another only if it is still
// in from. The state machine check belongs to the caller.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, orderID string, from, to Status) (Order, error) {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return Order{}, apperr.New(apperr.KindNotFound, "order %s not found", orderID)
	}

	tag, err := r.exec.Exec(ctx, `
		UPDATE orders
		SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2
	`, id, string(from), string(to))
	if err != nil {
		return Order{}, apperr.Unavailable("update order status", err)
	}
	if tag.RowsAffected() == 0 {
		return Order{}, ErrStatusChanged
	}
	return r.Get(ctx, orderID)
}

// loadLines fills Lines for every order with a single query.
func (r *PostgresRepository) loadLines(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(orders))
	byID := make(map[uuid.UUID]*Order, len(orders))
	for _, o := range orders {
		id, err := uuid.Parse(o.ID)
		if err != nil {
			return fmt.Errorf("order id: %w", err)
		}
		o.Lines = []Line{}
		ids = append(ids, id)
		byID[id] = o
	}

	rows, err := r.exec.Query(ctx, `
		SELECT id, order_id, position, product_id, product_name, quantity,
			list_price_cents, discount_percent, unit_price_cents, line_total_cents
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, ids)
	if err != nil {
		return apperr.Unavailable("select order lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l               Line
			lineID, ownerID uuid.UUID
		)
		if err := rows.Scan(&lineID, &ownerID, &l.Position, &l.ProductID, &l.ProductName, &l.Quantity,
			&l.ListPriceCents, &l.DiscountPercent, &l.UnitPriceCents, &l.LineTotalCents); err != nil {
			return apperr.Unavailable("scan order line", err)
		}
		l.ID = lineID.String()
		if o, ok := byID[ownerID]; ok {
			o.Lines = append(o.Lines, l)
		}
	}
	if err := rows.Err(); err != nil {
		return apperr.Unavailable("rows", err)
	}
	return nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		id     uuid.UUID
		status string
	)
	err := row.Scan(&id, &o.UserID, &o.CheckoutKey, &o.SubtotalCents, &o.ShippingCents, &o.TaxCents, &o.TotalCents,
		&o.ShippingAddress, &o.ShippingMethod, &o.PaymentMethod, &status, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	o.ID = id.String()
	o.Status = Status(status)
	return o, nil
}
