package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_StatusCode(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{NewBadRequestError("bad"), http.StatusBadRequest},
		{NewValidationError("field"), http.StatusBadRequest},
		{NewNotFoundError("cookcard"), http.StatusNotFound},
		{NewRateLimitedError(30, 3, 2), http.StatusTooManyRequests},
		{NewQuotaExceededError("free", 5, 5), http.StatusOK},
		{NewServiceUnavailableError("counter store", nil), http.StatusServiceUnavailable},
		{NewInternalError(""), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode())
		})
	}
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))

	cause := stderrors.New("disk full")
	wrapped := Wrap(cause, "save failed")
	require.NotNil(t, wrapped)
	assert.Equal(t, CodeInternal, wrapped.Code)
	assert.Equal(t, "save failed", wrapped.Message)
	assert.ErrorIs(t, wrapped, cause)

	existing := NewNotFoundError("cookcard")
	assert.Same(t, existing, Wrap(fmt.Errorf("get: %w", existing), "ignored"))
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(NewRateLimitedError(42, 3, 2), "req-1")
	assert.Equal(t, CodeTooManyRequests, resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Equal(t, int64(42), resp.Error.Metadata["retry_after_seconds"])
	assert.NotEmpty(t, resp.Error.Timestamp)
}
