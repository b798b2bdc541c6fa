package models

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error so callers can react without parsing messages.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindValidation        Kind = "validation"
	KindInsufficientStock Kind = "insufficient_stock"
	KindCapacityExceeded  Kind = "capacity_exceeded"
	KindConflict          Kind = "conflict"
	KindInvalidState      Kind = "invalid_state"
	KindPersistence       Kind = "persistence"
	KindNotAvailable      Kind = "not_available"
	KindInternal          Kind = "internal"
)

// Error is the typed error returned by every engine operation.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	ErrProductNotFound    = &Error{Kind: KindNotFound, Msg: "product not found"}
	ErrCartLineNotFound   = &Error{Kind: KindNotFound, Msg: "cart line not found"}
	ErrOrderNotFound      = &Error{Kind: KindNotFound, Msg: "order not found"}
	ErrEventNotFound      = &Error{Kind: KindNotFound, Msg: "event not found"}
	ErrBookingNotFound    = &Error{Kind: KindNotFound, Msg: "booking not found"}
	ErrAllocationNotFound = &Error{Kind: KindNotFound, Msg: "stock allocation not found"}

	ErrInvalidQuantity = &Error{Kind: KindValidation, Msg: "quantity must be positive"}
	ErrInvalidID       = &Error{Kind: KindValidation, Msg: "invalid id"}
	ErrEmptyCart       = &Error{Kind: KindValidation, Msg: "cart is empty"}
	ErrNotPackProduct  = &Error{Kind: KindValidation, Msg: "product is not sold in packs"}

	ErrInsufficientStock = &Error{Kind: KindInsufficientStock, Msg: "insufficient stock"}
	ErrCapacityExceeded  = &Error{Kind: KindCapacityExceeded, Msg: "event capacity exceeded"}
	ErrProductInactive   = &Error{Kind: KindNotAvailable, Msg: "product is not active"}
	ErrEventNotAvailable = &Error{Kind: KindNotAvailable, Msg: "event is not open for booking"}

	ErrInvalidTransition = &Error{Kind: KindInvalidState, Msg: "invalid status transition"}
	ErrConcurrentUpdate  = &Error{Kind: KindConflict, Msg: "concurrent update"}
	ErrDuplicateProduct  = &Error{Kind: KindConflict, Msg: "product name already exists"}
)

// NewError builds an error of the given kind with a formatted message.
func NewError(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and context to an underlying error.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of the outermost typed error in err's chain.
// Untyped errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether repeating the operation may succeed.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindConflict, KindPersistence:
		return true
	}
	return false
}
