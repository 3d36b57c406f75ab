// Package apperr carries machine-readable failure kinds from services to transports.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category returned to API clients.
type Kind string

const (
	PermissionDenied    Kind = "PermissionDenied"
	CutoffPassed        Kind = "CutoffPassed"
	DayBlocked          Kind = "DayBlocked"
	UnknownMealType     Kind = "UnknownMealType"
	MealTypeDisabled    Kind = "MealTypeDisabled"
	UserInactive        Kind = "UserInactive"
	UserNotFound        Kind = "UserNotFound"
	ValidationError     Kind = "ValidationError"
	NotAuthenticated    Kind = "NotAuthenticated"
	TransientStoreError Kind = "TransientStoreError"
	NotFound            Kind = "NotFound"
	Conflict            Kind = "Conflict"
	Internal            Kind = "Internal"
)

// Error is a failure with a kind and a message suitable for direct display.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind wrapping err.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the display message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}
