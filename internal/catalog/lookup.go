package catalog

import "context"

// Lookup returns the current attributes of a product. Implementations return
// an error matching apperr.ErrNotFound for unknown products; any other error
// is an infrastructure failure.
type Lookup interface {
	Get(ctx context.Context, productID string) (Product, error)
}
