package paypack

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/agura-market/agura_market/internal/apperr"
)

// Error is a classified provider failure. Kind is either
// apperr.ErrGatewayUnavailable or apperr.ErrGatewayRejected.
type Error struct {
	Op         string
	Kind       error
	StatusCode int
	// Message is the provider's own explanation. It is logged, never shown to callers.
	Message string
	cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("paypack %s: %v", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.cause}
}

func unavailable(op string, cause error) *Error {
	return &Error{Op: op, Kind: apperr.ErrGatewayUnavailable, cause: cause}
}

// classify maps a non-2xx provider status to an error kind. Throttling and
// authorization failures say nothing about the payment itself, so they stay
// retryable alongside 5xx.
func classify(op string, status int, message string) *Error {
	kind := apperr.ErrGatewayRejected
	switch {
	case status >= http.StatusInternalServerError,
		status == http.StatusTooManyRequests,
		status == http.StatusUnauthorized,
		status == http.StatusRequestTimeout:
		kind = apperr.ErrGatewayUnavailable
	}
	return &Error{Op: op, Kind: kind, StatusCode: status, Message: message}
}

// IsRejected reports whether err is a provider decline.
func IsRejected(err error) bool {
	return errors.Is(err, apperr.ErrGatewayRejected)
}

// IsUnavailable reports whether err is a transport or provider-side failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, apperr.ErrGatewayUnavailable)
}
