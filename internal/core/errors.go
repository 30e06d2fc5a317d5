package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures. Callers switch on the kind, never on the message.
type ErrorKind string

const (
	KindInvalidState       ErrorKind = "INVALID_STATE"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindExpired            ErrorKind = "EXPIRED"
	KindInvalidAmount      ErrorKind = "INVALID_AMOUNT"
	KindInsufficientPoints ErrorKind = "INSUFFICIENT_POINTS"
	KindOverRefund         ErrorKind = "OVER_REFUND"
	KindMissingReason      ErrorKind = "MISSING_REASON"
	KindEmptyCart          ErrorKind = "EMPTY_CART"
	KindNotActive          ErrorKind = "NOT_ACTIVE"
)

// Error is the typed failure returned by every engine operation.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrExpired) works
// regardless of the message or of wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidState       = &Error{Kind: KindInvalidState}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrExpired            = &Error{Kind: KindExpired}
	ErrInvalidAmount      = &Error{Kind: KindInvalidAmount}
	ErrInsufficientPoints = &Error{Kind: KindInsufficientPoints}
	ErrOverRefund         = &Error{Kind: KindOverRefund}
	ErrMissingReason      = &Error{Kind: KindMissingReason}
	ErrEmptyCart          = &Error{Kind: KindEmptyCart}
	ErrNotActive          = &Error{Kind: KindNotActive}
)

// NewError builds a typed engine error. Store implementations use it to
// report missing or duplicate aggregates in the engine's vocabulary.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" for
// infrastructure errors (storage, encoding).
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
