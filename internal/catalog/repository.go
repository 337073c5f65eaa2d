package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
)

type Repository interface {
	Lookup
	List(ctx context.Context, f Filter) ([]Product, error)
	Upsert(ctx context.Context, p *Product) error
	Delete(ctx context.Context, productID string) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const productColumns = `id, name, category, price_cents, discount_percent, in_stock, created_at, updated_at`

func (r *PostgresRepository) Get(ctx context.Context, productID string) (Product, error) {
	var p Product
	err := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`,
		productID,
	).Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.DiscountPercent, &p.InStock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, apperr.New(apperr.KindNotFound, "product %s not found", productID)
		}
		return Product{}, apperr.Unavailable("select product", err)
	}
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Product, error) {
	query, args := listQuery(f)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Unavailable("select products", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.DiscountPercent, &p.InStock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, apperr.Unavailable("scan product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Unavailable("rows", err)
	}
	return products, nil
}

func listQuery(f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.MinPrice != nil {
		add("price_cents >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("price_cents <= $%d", *f.MaxPrice)
	}
	if f.InStockOnly {
		where = append(where, "in_stock")
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + productColumns + ` FROM products`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	switch f.Sort {
	case SortPriceAsc:
		b.WriteString(" ORDER BY price_cents ASC, id")
	case SortPriceDesc:
		b.WriteString(" ORDER BY price_cents DESC, id")
	case SortNewest:
		b.WriteString(" ORDER BY created_at DESC, id")
	default:
		b.WriteString(" ORDER BY name ASC, id")
	}

	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}

func (r *PostgresRepository) Upsert(ctx context.Context, p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	const upsertSQL = `
INSERT INTO products (id, name, category, price_cents, discount_percent, in_stock, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    category = EXCLUDED.category,
    price_cents = EXCLUDED.price_cents,
    discount_percent = EXCLUDED.discount_percent,
    in_stock = EXCLUDED.in_stock,
    updated_at = now()
RETURNING created_at, updated_at
`
	err := r.db.QueryRowContext(ctx, upsertSQL,
		p.ID, p.Name, p.Category, p.PriceCents, p.DiscountPercent, p.InStock,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return apperr.Unavailable("upsert product", err)
	}
	return nil
}

// Delete removes a product. Cart lines that still reference it are left in
// place and surface as unavailable at pricing time.
func (r *PostgresRepository) Delete(ctx context.Context, productID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		return apperr.Unavailable("delete product", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Unavailable("delete product", err)
	}
	if n == 0 {
		return apperr.New(apperr.KindNotFound, "product %s not found", productID)
	}
	return nil
}
