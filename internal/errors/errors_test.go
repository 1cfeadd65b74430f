package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", NewValidationError("bad", nil), http.StatusBadRequest},
		{"not found", NewNotFoundError("missing", nil), http.StatusNotFound},
		{"upstream", NewUpstreamError("ml down", context.DeadlineExceeded), http.StatusBadRequest},
		{"database", NewDatabaseError("write failed", nil), http.StatusInternalServerError},
		{"unavailable", NewUnavailableError("down", nil), http.StatusServiceUnavailable},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError},
		{"wrapped api error", fmt.Errorf("ctx: %w", NewNotFoundError("missing", nil)), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestPredicatesFollowWrapping(t *testing.T) {
	err := fmt.Errorf("loading latest: %w", NewNotFoundError("no rows", nil))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.False(t, IsNotFound(fmt.Errorf("plain")))
}

func TestUnwrapExposesCause(t *testing.T) {
	err := NewUpstreamError("calibration failed", context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, context.DeadlineExceeded.Error(), err.Cause())
	assert.Equal(t, "missing", NewNotFoundError("missing", nil).Cause())
}

func TestWrap(t *testing.T) {
	orig := NewValidationError("bad", nil)
	assert.Same(t, orig, Wrap(orig, "ignored"))

	wrapped := Wrap(fmt.Errorf("boom"), "failed")
	require.NotNil(t, wrapped)
	assert.Equal(t, ErrorTypeInternal, wrapped.Type)
	assert.Equal(t, "failed", wrapped.Message)
}
