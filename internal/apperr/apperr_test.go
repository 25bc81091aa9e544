package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("verify: %w", ErrUnauthenticated), http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("cash in: %w", ErrGatewayRejected), http.StatusForbidden},
		{fmt.Errorf("product P1: %w", ErrNotFound), http.StatusNotFound},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrConflict, http.StatusConflict},
		{fmt.Errorf("cash in: %w", ErrGatewayUnavailable), http.StatusInternalServerError},
		{ErrPreconditionFailed, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Status(tc.err), "error %v", tc.err)
	}
}

func TestRetryableOnlyForUnavailable(t *testing.T) {
	assert.True(t, Retryable(fmt.Errorf("x: %w", ErrGatewayUnavailable)))
	assert.False(t, Retryable(ErrGatewayRejected))
	assert.False(t, Retryable(ErrNotFound))
}

func TestMessageHidesInternals(t *testing.T) {
	assert.Equal(t, "internal server error", Message(errors.New("pq: connection refused on 10.0.0.3")))
	assert.Equal(t, "internal server error", Message(fmt.Errorf("role gate: %w", ErrPreconditionFailed)))
	assert.Equal(t, ErrGatewayUnavailable.Error(), Message(fmt.Errorf("dial tcp: %w", ErrGatewayUnavailable)))
	assert.Equal(t, "product P1: not found", Message(fmt.Errorf("product P1: %w", ErrNotFound)))
}
