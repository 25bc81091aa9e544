package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrUnauthenticated covers missing, malformed, expired or tampered credentials.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden indicates an authenticated caller lacks the required role.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates a referenced resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrGatewayRejected indicates the payment provider validated and declined a request.
	ErrGatewayRejected = errors.New("payment provider rejected the request")

	// ErrGatewayUnavailable covers network failures, timeouts and provider-side errors.
	// It is the only kind a caller may consider retrying.
	ErrGatewayUnavailable = errors.New("payment provider unavailable")

	// ErrPreconditionFailed signals internal misuse, such as a role check that ran
	// before authentication.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrInvalidInput indicates a malformed request.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates the request collides with one already in progress.
	ErrConflict = errors.New("conflict")
)

// Status maps an error to the HTTP status reported to the caller.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrGatewayRejected):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a caller may safely retry the failed operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}

// Message returns a caller-facing description of err. Unclassified errors are
// collapsed so internal details never leak.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrPreconditionFailed):
		return "internal server error"
	case errors.Is(err, ErrGatewayUnavailable):
		return ErrGatewayUnavailable.Error()
	case errors.Is(err, ErrGatewayRejected):
		return ErrGatewayRejected.Error()
	case Status(err) == http.StatusInternalServerError:
		return "internal server error"
	default:
		return err.Error()
	}
}
