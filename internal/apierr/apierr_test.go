package apierr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pacelog/privacy-service/internal/apierr"
)

func TestFrom_PassesThroughClassifiedErrors(t *testing.T) {
	orig := apierr.FailedPrecondition("deletion already executing")
	wrapped := fmt.Errorf("cancel deletion: %w", orig)

	got := apierr.From(wrapped)
	assert.Equal(t, apierr.CodeFailedPrecondition, got.Code)
	assert.Equal(t, "deletion already executing", got.Message)
}

func TestFrom_UnclassifiedBecomesInternal(t *testing.T) {
	got := apierr.From(errors.New("socket closed"))
	assert.Equal(t, apierr.CodeInternal, got.Code)
	assert.NotContains(t, got.Message, "socket")
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code apierr.Code
		want int
	}{
		{apierr.CodeUnauthenticated, http.StatusUnauthorized},
		{apierr.CodePermissionDenied, http.StatusForbidden},
		{apierr.CodeInvalidArgument, http.StatusBadRequest},
		{apierr.CodeNotFound, http.StatusNotFound},
		{apierr.CodeAlreadyExists, http.StatusConflict},
		{apierr.CodeFailedPrecondition, http.StatusPreconditionFailed},
		{apierr.CodeResourceExhausted, http.StatusTooManyRequests},
		{apierr.CodeUnavailable, http.StatusServiceUnavailable},
		{apierr.CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, apierr.HTTPStatus(tt.code), string(tt.code))
	}
}

func TestWithCause_Unwraps(t *testing.T) {
	cause := errors.New("row not found")
	err := apierr.NotFound("deletion request not found").WithCause(cause)
	assert.True(t, errors.Is(err, cause))
}
