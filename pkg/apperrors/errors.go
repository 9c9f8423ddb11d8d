// Package apperrors defines the internal error taxonomy shared by every
// component of TradeDesk. Components return a *Error wrapping a Kind;
// the HTTP layer is the only place that kind gets mapped to a status code.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the internal error categories from the design's error
// taxonomy. The HTTP layer maps it to a status code and reports it in
// the error envelope's kind field; the gateway layer maps it to a retry
// decision.
type Kind string

const (
	KindInvalidArgument  Kind = "invalid_argument"
	KindUnauthenticated  Kind = "unauthenticated"
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindRateLimited      Kind = "rate_limited"
	KindUnavailable      Kind = "unavailable"
	KindUpstream         Kind = "upstream"
	KindTimeout          Kind = "timeout"
	KindCanceled         Kind = "canceled"
	KindInternal         Kind = "internal"
)

// Error is the concrete error type produced across TradeDesk. Error()
// renders Kind, Message and Cause (if any); the HTTP layer sends that
// full text to clients, except for internal errors in release mode.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around a lower-level cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Newf builds an *Error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, defaulting to KindInternal when err
// is not (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps a Kind to the status code from the error handling design.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidTransition:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindUpstream:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindCanceled:
		return 499 // nginx convention for client-closed-request; not in net/http constants
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a Gateway read operation may be retried for
// this kind (§4.1: idempotent reads retry on Upstream/Timeout only).
func Retryable(kind Kind) bool {
	return kind == KindUpstream || kind == KindTimeout
}
