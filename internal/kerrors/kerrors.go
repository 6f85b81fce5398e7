// Package kerrors defines KissVDB's error taxonomy: a small set of kind
// tags carried alongside a human-actionable message, the way fluxor's
// pkg/db and pkg/core carry a {Code, Message} pair on their own Error type.
package kerrors

import "fmt"

// Kind is one of the error taxonomy tags from the error handling design.
type Kind string

const (
	InvalidArgument Kind = "invalid_argument"
	NotFound        Kind = "not_found"
	Conflict        Kind = "conflict"
	Unavailable     Kind = "unavailable"
	IOError         Kind = "io_error"
	Internal        Kind = "internal"
)

// Error is the uniform error shape surfaced to callers: {error, message}.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New builds an Error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func InvalidArgumentf(format string, args ...interface{}) *Error {
	return New(InvalidArgument, format, args...)
}

func NotFoundf(format string, args ...interface{}) *Error {
	return New(NotFound, format, args...)
}

func Conflictf(format string, args ...interface{}) *Error {
	return New(Conflict, format, args...)
}

func Unavailablef(format string, args ...interface{}) *Error {
	return New(Unavailable, format, args...)
}

func IOErrorf(format string, args ...interface{}) *Error {
	return New(IOError, format, args...)
}

func Internalf(format string, args ...interface{}) *Error {
	return New(Internal, format, args...)
}

// As extracts a *Error from err, if it is one.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}

// KindOf returns the Kind of err, defaulting to Internal for unclassified
// errors (e.g. raw I/O errors that escaped without being wrapped).
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Internal
}
