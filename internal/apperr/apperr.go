// Package apperr holds the error kinds returned by the cart and order engine.
//
// Business-rule failures are expected outcomes of normal use. Callers branch
// on them with errors.Is against the sentinels below, or with KindOf.
// StoreUnavailable marks infrastructure failures and is the only retryable kind.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidQuantity    Kind = "invalid_quantity"
	KindProductUnavailable Kind = "product_unavailable"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindEmptyCart          Kind = "empty_cart"
	KindCheckoutBlocked    Kind = "checkout_blocked"
	KindUnavailableItems   Kind = "unavailable_items"
	KindStoreUnavailable   Kind = "store_unavailable"
	KindInvalidArgument    Kind = "invalid_argument"
	KindInvalidTransition  Kind = "invalid_transition"
)

var (
	ErrInvalidQuantity    = &Error{Kind: KindInvalidQuantity, Msg: "quantity must be at least 1"}
	ErrProductUnavailable = &Error{Kind: KindProductUnavailable, Msg: "product is unavailable"}
	ErrForbidden          = &Error{Kind: KindForbidden, Msg: "cart line belongs to another user"}
	ErrNotFound           = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrEmptyCart          = &Error{Kind: KindEmptyCart, Msg: "cart is empty"}
	ErrCheckoutBlocked    = &Error{Kind: KindCheckoutBlocked, Msg: "remove out-of-stock items before checkout"}
	ErrUnavailableItems   = &Error{Kind: KindUnavailableItems, Msg: "remove items that are no longer sold before checkout"}
	ErrStoreUnavailable   = &Error{Kind: KindStoreUnavailable, Msg: "store unavailable, try again"}
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument, Msg: "invalid argument"}
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition, Msg: "invalid order status transition"}
)

// Error is a classified engine error. Two Errors match under errors.Is when
// their kinds are equal, so a detailed error still matches its sentinel.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return e.Msg + ": " + e.Err.Error()
	case e.Err != nil:
		return string(e.Kind) + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Unavailable wraps an infrastructure failure as StoreUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindStoreUnavailable, Msg: op, Err: err}
}

// KindOf reports the kind of err. Unclassified errors are treated as
// StoreUnavailable since no business rule produced them.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStoreUnavailable
}

// Retryable reports whether the caller may retry the whole operation
// without user action.
func Retryable(err error) bool {
	return err != nil && KindOf(err) == KindStoreUnavailable
}
