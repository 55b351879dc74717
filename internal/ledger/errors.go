package ledger

import (
	"errors"
	"fmt"
)

// Kind sentinels. Every *Error unwraps to exactly one of them.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("invalid state")
)

// Error is a domain error whose message is safe to show to clients.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

func Validationf(format string, args ...any) error {
	return &Error{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) error {
	return &Error{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) error {
	return &Error{kind: ErrConflict, msg: fmt.Sprintf(format, args...)}
}

var (
	ErrEmptyOrder        = Validationf("order must contain at least one item with quantity > 0")
	ErrInvalidQuantity   = Validationf("quantity must be greater than 0")
	ErrOrderNotFound     = NotFoundf("order not found")
	ErrOrderItemNotFound = NotFoundf("order item not found")
	ErrNotConfirmable    = Conflictf("only pending or partial orders can be confirmed")
	ErrNotCancellable    = Conflictf("only pending orders can be cancelled")
	ErrOrderCancelled    = Conflictf("cannot receive items on a cancelled order")
)

func ProductNotFound(id int64) error {
	return Validationf("product %d not found", id)
}
