package services

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindConflict
	KindNotFound
	KindGone
	KindForbidden
	KindUnauthorized
	KindAllocationExhausted
	KindStore
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindGone:
		return "gone"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindAllocationExhausted:
		return "allocation_exhausted"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every service. Msg is safe to show to
// clients; Err carries the underlying cause for logs.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewValidationError(msg string, err error) *Error {
	return &Error{Kind: KindValidation, Msg: msg, Err: err}
}

func NewConflictError(msg string) *Error {
	return &Error{Kind: KindConflict, Msg: msg}
}

func NewNotFoundError(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

func NewForbiddenError(msg string) *Error {
	return &Error{Kind: KindForbidden, Msg: msg}
}

func NewUnauthorizedError(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Msg: msg}
}

func NewStoreError(op string, err error) *Error {
	return &Error{Kind: KindStore, Msg: "failed to " + op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return 0
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
