package errors

import (
	"context"
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"

	"github.com/lib/pq"
)

// Kind classifies an error for the caller independently of the transport.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindTransient  Kind = "transient"
	KindAuth       Kind = "auth"
	KindForbidden  Kind = "forbidden"
	KindInternal   Kind = "internal"
)

// HTTPError represents an error with an associated HTTP status code.
// Message is safe to show to end users; Detail carries optional structured
// diagnostics (field errors, conflicting ids) and Err the wrapped cause,
// which is logged but never rendered.
type HTTPError struct {
	Code    int
	Kind    Kind
	Message string
	Detail  any
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the same request unchanged.
func (e *HTTPError) Retryable() bool { return e.Kind == KindTransient }

// NewHTTPError creates a new HTTPError with the given code and message.
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Kind:    kindForCode(code),
		Message: message,
	}
}

// WithDetail returns a copy of e carrying detail.
func (e *HTTPError) WithDetail(detail any) *HTTPError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// Wrap returns a copy of e that records err as its cause.
func (e *HTTPError) Wrap(err error) *HTTPError {
	cp := *e
	cp.Err = err
	return &cp
}

// Helpers for common errors
var (
	ErrUnauthorized = func(msg string) *HTTPError { return NewHTTPError(http.StatusUnauthorized, msg) }
	ErrForbidden    = func(msg string) *HTTPError { return NewHTTPError(http.StatusForbidden, msg) }
	ErrValidation   = func(msg string) *HTTPError { return NewHTTPError(http.StatusBadRequest, msg) }
	ErrNotFound     = func(msg string) *HTTPError { return NewHTTPError(http.StatusNotFound, msg) }
	ErrConflict     = func(msg string) *HTTPError { return NewHTTPError(http.StatusConflict, msg) }
)

// Transient reports an infrastructure failure the caller may retry.
func Transient(msg string, err error) *HTTPError {
	return &HTTPError{Code: http.StatusServiceUnavailable, Kind: KindTransient, Message: msg, Err: err}
}

// Internal wraps an unexpected failure behind a generic message.
func Internal(err error) *HTTPError {
	return &HTTPError{Code: http.StatusInternalServerError, Kind: KindInternal, Message: "internal server error", Err: err}
}

// From converts any error into an HTTPError. Typed errors pass through;
// timeouts and connection failures become transient; anything else is
// internal.
func From(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var he *HTTPError
	if stderrors.As(err, &he) {
		return he
	}
	if IsInfra(err) {
		return Transient("service temporarily unavailable, please retry", err)
	}
	return Internal(err)
}

// IsInfra reports whether err looks like a database or network outage rather
// than a programming or data error.
func IsInfra(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "40P01", pqErr.Code == "40001":
			// deadlock or serialization abort, the whole transaction can be retried
			return true
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "57":
			return true
		}
		return false
	}
	var ne net.Error
	return stderrors.As(err, &ne)
}

// KindOf returns the Kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}

func kindForCode(code int) Kind {
	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return KindValidation
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusUnauthorized:
		return KindAuth
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindTransient
	default:
		return KindInternal
	}
}
