// Package httpx holds the JSON response helpers and the error taxonomy shared by
// every handler.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how it is reported to the caller.
type Kind int

const (
	KindUpstream Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindUnavailable
	KindRateLimited
	KindMethodNotAllowed
)

func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// Error is a user-facing failure. Message is always shown; Err is the internal
// cause and is only exposed outside production.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func NotFound(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", resource, id)}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func Unavailable(msg string) *Error {
	return &Error{Kind: KindUnavailable, Message: msg}
}

func RateLimited(msg string) *Error {
	return &Error{Kind: KindRateLimited, Message: msg}
}

func MethodNotAllowed(msg string) *Error {
	return &Error{Kind: KindMethodNotAllowed, Message: msg}
}

// RouteNotFound is reported for paths no handler is mounted on.
func RouteNotFound() *Error {
	return &Error{Kind: KindNotFound, Message: "Route not found"}
}

// Upstream wraps a backend fault (database, identity provider, payment processor).
func Upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// AsError converts any error into an *Error, treating unknown errors as upstream faults.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Upstream("Internal server error", err)
}
