// Package apperr defines the error taxonomy shared by the catalog and auth
// services. Every business error carries a Kind, which the HTTP layer maps to
// a status, and a stable Code that clients can switch on.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transport layer.
type Kind string

const (
	KindInternal     Kind = "internal"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindForbidden    Kind = "forbidden"
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindRateLimited  Kind = "rate_limited"
)

// Detail describes a single offending field of a rejected request.
type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a typed business error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details []Detail
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is an *Error with the same code, so that sentinel
// values keep matching after WithMessage or WithDetails.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// WithDetails returns a copy of e carrying field-level details.
func (e *Error) WithDetails(details ...Detail) *Error {
	c := *e
	c.Details = append([]Detail(nil), details...)
	return &c
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func NotFound(code, message string) *Error   { return New(KindNotFound, code, message) }
func Conflict(code, message string) *Error   { return New(KindConflict, code, message) }
func Forbidden(code, message string) *Error  { return New(KindForbidden, code, message) }
func Validation(code, message string) *Error { return New(KindValidation, code, message) }

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
