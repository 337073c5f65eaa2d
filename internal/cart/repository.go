package cart

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
)

// Executor matches the methods shared by *pgxpool.Pool and pgx.Tx.
type Executor interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Store interface {
	Lines(ctx context.Context, userID string) ([]Line, error)
	Line(ctx context.Context, lineID string) (Line, error)
	LineFor(ctx context.Context, userID, productID string) (Line, error)
	Upsert(ctx context.Context, userID, productID string, delta int) (Line, error)
	SetQuantity(ctx context.Context, userID, lineID string, quantity int) (Line, error)
	Remove(ctx context.Context, lineID string) error
	Clear(ctx context.Context, userID string) (int64, error)
}

// maxStoredQuantity is the largest quantity the INTEGER column holds.
const maxStoredQuantity = math.MaxInt32

type PostgresRepository struct {
	exec   Executor
	maxQty int
}

// NewPostgresRepository returns a cart store. maxQuantity caps a single line;
// zero disables the cap.
func NewPostgresRepository(exec Executor, maxQuantity int) *PostgresRepository {
	return &PostgresRepository{exec: exec, maxQty: maxQuantity}
}

// WithExecutor returns a shallow copy using the provided executor (e.g., a transaction).
func (r *PostgresRepository) WithExecutor(exec Executor) *PostgresRepository {
	return &PostgresRepository{exec: exec, maxQty: r.maxQty}
}

const lineColumns = `id, user_id, product_id, quantity, created_at, updated_at`

func (r *PostgresRepository) Lines(ctx context.Context, userID string) ([]Line, error) {
	return r.queryLines(ctx, `
		SELECT `+lineColumns+`
		FROM cart_lines
		WHERE user_id=$1
		ORDER BY created_at, id
	`, userID)
}

// LockLines reads the user's lines with row locks held until the surrounding
// transaction ends. It must run on a transaction executor.
func (r *PostgresRepository) LockLines(ctx context.Context, userID string) ([]Line, error) {
	return r.queryLines(ctx, `
		SELECT `+lineColumns+`
		FROM cart_lines
		WHERE user_id=$1
		ORDER BY created_at, id
		FOR UPDATE
	`, userID)
}

func (r *PostgresRepository) queryLines(ctx context.Context, sql, userID string) ([]Line, error) {
	rows, err := r.exec.Query(ctx, sql, userID)
	if err != nil {
		return nil, apperr.Unavailable("select cart lines", err)
	}
	defer rows.Close()

	lines := []Line{}
	for rows.Next() {
		var l Line
		if err := scanLine(rows, &l); err != nil {
			return nil, apperr.Unavailable("scan cart line", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("rows", err)
	}
	return lines, nil
}

func (r *PostgresRepository) Line(ctx context.Context, lineID string) (Line, error) {
	id, err := uuid.Parse(lineID)
	if err != nil {
		return Line{}, apperr.New(apperr.KindNotFound, "cart line %s not found", lineID)
	}

	var l Line
	row := r.exec.QueryRow(ctx, `SELECT `+lineColumns+` FROM cart_lines WHERE id=$1`, id)
	if err := scanLine(row, &l); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{}, apperr.New(apperr.KindNotFound, "cart line %s not found", lineID)
		}
		return Line{}, apperr.Unavailable("select cart line", err)
	}
	return l, nil
}

func (r *PostgresRepository) LineFor(ctx context.Context, userID, productID string) (Line, error) {
	var l Line
	row := r.exec.QueryRow(ctx, `
		SELECT `+lineColumns+`
		FROM cart_lines
		WHERE user_id=$1 AND product_id=$2
	`, userID, productID)
	if err := scanLine(row, &l); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{}, apperr.New(apperr.KindNotFound, "no cart line for product %s", productID)
		}
		return Line{}, apperr.Unavailable("select cart line", err)
	}
	return l, nil
}

// Upsert adds delta to the user's line for productID, creating the line when
// absent. The merge and the cap check run in one statement so concurrent
// adds for the same product never produce two lines or lose an increment.
func (r *PostgresRepository) Upsert(ctx context.Context, userID, productID string, delta int) (Line, error) {
	if delta < 1 {
		return Line{}, apperr.New(apperr.KindInvalidQuantity, "quantity %d is below 1", delta)
	}
	if delta > r.limit() {
		return Line{}, r.tooMany()
	}

	var l Line
	row := r.exec.QueryRow(ctx, `
		INSERT INTO cart_lines (id, user_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = cart_lines.quantity + EXCLUDED.quantity, updated_at = now()
		WHERE cart_lines.quantity::bigint + EXCLUDED.quantity <= $5
		RETURNING `+lineColumns, uuid.New(), userID, productID, delta, r.limit())
	if err := scanLine(row, &l); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// conflict row existed but the merged quantity broke the cap
			return Line{}, r.tooMany()
		}
		return Line{}, apperr.Unavailable("upsert cart line", err)
	}
	return l, nil
}

// SetQuantity overwrites the quantity of one of the user's lines. A line owned
// by someone else is reported as NotFound.
func (r *PostgresRepository) SetQuantity(ctx context.Context, userID, lineID string, quantity int) (Line, error) {
	if quantity < 1 {
		return Line{}, apperr.New(apperr.KindInvalidQuantity, "quantity %d is below 1", quantity)
	}
	if quantity > r.limit() {
		return Line{}, r.tooMany()
	}
	id, err := uuid.Parse(lineID)
	if err != nil {
		return Line{}, apperr.New(apperr.KindNotFound, "cart line %s not found", lineID)
	}

	var l Line
	row := r.exec.QueryRow(ctx, `
		UPDATE cart_lines
		SET quantity=$3, updated_at=now()
		WHERE id=$1 AND user_id=$2
		RETURNING `+lineColumns, id, userID, quantity)
	if err := scanLine(row, &l); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{}, apperr.New(apperr.KindNotFound, "cart line %s not found", lineID)
		}
		return Line{}, apperr.Unavailable("update cart line", err)
	}
	return l, nil
}

// Remove deletes a line. Removing a line that does not exist is not an error.
func (r *PostgresRepository) Remove(ctx context.Context, lineID string) error {
	id, err := uuid.Parse(lineID)
	if err != nil {
		return nil
	}
	if _, err := r.exec.Exec(ctx, `DELETE FROM cart_lines WHERE id=$1`, id); err != nil {
		return apperr.Unavailable("delete cart line", err)
	}
	return nil
}

// Clear deletes every line of the user and reports how many were removed.
func (r *PostgresRepository) Clear(ctx context.Context, userID string) (int64, error) {
	tag, err := r.exec.Exec(ctx, `DELETE FROM cart_lines WHERE user_id=$1`, userID)
	if err != nil {
		return 0, apperr.Unavailable("clear cart", err)
	}
	return tag.RowsAffected(), nil
}

// ClearLines deletes the given lines of the user. Lines added after the
// caller read the cart are left alone.
func (r *PostgresRepository) ClearLines(ctx context.Context, userID string, lineIDs []string) (int64, error) {
	ids := make([]uuid.UUID, 0, len(lineIDs))
	for _, lineID := range lineIDs {
		id, err := uuid.Parse(lineID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := r.exec.Exec(ctx, `DELETE FROM cart_lines WHERE user_id=$1 AND id = ANY($2)`, userID, ids)
	if err != nil {
		return 0, apperr.Unavailable("clear cart lines", err)
	}
	return tag.RowsAffected(), nil
}

// limit is the configured per-line cap, bounded by what the column can store.
func (r *PostgresRepository) limit() int {
	if r.maxQty > 0 && r.maxQty < maxStoredQuantity {
		return r.maxQty
	}
	return maxStoredQuantity
}

func (r *PostgresRepository) tooMany() error {
	return apperr.New(apperr.KindInvalidQuantity, "quantity per item is limited to %d", r.limit())
}

func scanLine(row pgx.Row, l *Line) error {
	var id uuid.UUID
	if err := row.Scan(&id, &l.UserID, &l.ProductID, &l.Quantity, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return err
	}
	l.ID = id.String()
	return nil
}
