package cart

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
)

// Reconciler applies the cart business rules on top of a Store. Handlers
// never call Store mutators directly.
type Reconciler struct {
	store   Store
	catalog catalog.Lookup
	logger  *zap.Logger
}

func NewReconciler(store Store, lookup catalog.Lookup, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: store, catalog: lookup, logger: logger}
}

func (r *Reconciler) Lines(ctx context.Context, userID string) ([]Line, error) {
	return r.store.Lines(ctx, userID)
}

// AddToCart merges quantity into the user's line for productID. The product
// must exist and be in stock right now.
func (r *Reconciler) AddToCart(ctx context.Context, userID, productID string, quantity int) (Line, error) {
	if quantity < 1 {
		return Line{}, apperr.New(apperr.KindInvalidQuantity, "quantity %d is below 1", quantity)
	}

	p, err := r.catalog.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Line{}, apperr.New(apperr.KindProductUnavailable, "product %s does not exist", productID)
		}
		return Line{}, apperr.Unavailable("catalog lookup", err)
	}
	if !p.InStock {
		return Line{}, apperr.New(apperr.KindProductUnavailable, "%s is out of stock", p.Name)
	}

	line, err := r.store.Upsert(ctx, userID, productID, quantity)
	if err != nil {
		return Line{}, err
	}
	r.logger.Debug("cart line merged",
		zap.String("user_id", userID),
		zap.String("product_id", productID),
		zap.Int("added", quantity),
		zap.Int("quantity", line.Quantity),
	)
	return line, nil
}

// UpdateQuantity sets an absolute quantity. Zero or less is rejected without
// touching the line; callers remove items with RemoveItem.
func (r *Reconciler) UpdateQuantity(ctx context.Context, userID, lineID string, quantity int) (Line, error) {
	if quantity < 1 {
		return Line{}, apperr.New(apperr.KindInvalidQuantity, "quantity %d is below 1, remove the item instead", quantity)
	}

	if _, err := r.owned(ctx, userID, lineID); err != nil {
		return Line{}, err
	}
	return r.store.SetQuantity(ctx, userID, lineID, quantity)
}

// RemoveItem deletes one of the user's lines. A line that no longer exists
// counts as removed.
func (r *Reconciler) RemoveItem(ctx context.Context, userID, lineID string) error {
	if _, err := r.owned(ctx, userID, lineID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		return err
	}
	return r.store.Remove(ctx, lineID)
}

func (r *Reconciler) ClearCart(ctx context.Context, userID string) error {
	n, err := r.store.Clear(ctx, userID)
	if err != nil {
		return err
	}
	r.logger.Debug("cart cleared", zap.String("user_id", userID), zap.Int64("lines", n))
	return nil
}

func (r *Reconciler) owned(ctx context.Context, userID, lineID string) (Line, error) {
	line, err := r.store.Line(ctx, lineID)
	if err != nil {
		return Line{}, err
	}
	if line.UserID != userID {
		r.logger.Warn("cart line ownership mismatch", zap.String("user_id", userID), zap.String("line_id", lineID))
		return Line{}, apperr.ErrForbidden
	}
	return line, nil
}
