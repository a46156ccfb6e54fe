// Package apperr defines the error taxonomy returned by every externally
// facing operation. Internal errors are mapped into exactly one kind before
// crossing the handler boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for clients.
type Kind string

const (
	KindUnauthorized    Kind = "unauthorized"
	KindNotFound        Kind = "not_found"
	KindValidation      Kind = "validation"
	KindPaymentRequired Kind = "payment_required"
	KindQuotaExceeded   Kind = "quota_exceeded"
	KindUpstream        Kind = "upstream_failure"
	KindInternal        Kind = "internal"
)

// Error is a typed application error. Quota and payment errors carry the
// caller's current tier and the tier the action requires so clients can
// render an upgrade prompt.
type Error struct {
	Kind         Kind
	Message      string
	CurrentTier  string
	RequiredTier string
	Err          error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to an HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindPaymentRequired:
		return http.StatusPaymentRequired
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Unauthorized reports a missing or invalid identity.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// NotFound reports a resource that does not exist or is not owned by the caller.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Validation reports malformed input, naming the offending field or condition.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// PaymentRequired reports an action that needs a higher tier.
func PaymentRequired(message, currentTier, requiredTier string) *Error {
	return &Error{
		Kind:         KindPaymentRequired,
		Message:      message,
		CurrentTier:  currentTier,
		RequiredTier: requiredTier,
	}
}

// QuotaExceeded reports an exhausted period allotment within the caller's tier.
func QuotaExceeded(message, currentTier string) *Error {
	return &Error{Kind: KindQuotaExceeded, Message: message, CurrentTier: currentTier}
}

// Upstream reports a provider failure with a user-safe message; the specific
// diagnostic stays in err and is logged internally only.
func Upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

// Internal wraps an unexpected error behind a generic message.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
