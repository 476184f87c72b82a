package error

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Unwrap(t *testing.T) {
	err := fmt.Errorf("creating queue: %w", NewInvalidBudgetError(-5))

	assert.True(t, errors.Is(err, ErrInvalidBudget))
	assert.Equal(t, ErrorTypeInvalidBudget, TypeOf(err))
	assert.Contains(t, err.Error(), "-5")
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"app error", NewRateLimitError("slow down", nil), ErrorTypeRateLimit},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrorTypeTimeout},
		{"plain", errors.New("boom"), ErrorTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOf(tt.err))
		})
	}
}

func TestUserNotice(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"upstream message surfaced", NewUpstreamError("model overloaded", nil), "model overloaded"},
		{"rate limit surfaced", NewRateLimitError("Rate limit reached", nil), "Rate limit reached"},
		{"malformed is generic", NewMalformedResponseError("bad json", errors.New("eof")), "Something went wrong while generating a reply."},
		{"transport", NewTransportError("dial tcp", nil), "Could not reach the completion service."},
		{"untyped", errors.New("boom"), "Something went wrong while generating a reply."},
		{"raw deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), "The completion service took too long to answer."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserNotice(tt.err))
		})
	}
}

func TestGetHTTPStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusOK, GetHTTPStatusCode(nil))
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatusCode(NewValidationError("bad", nil)))
	assert.Equal(t, http.StatusGatewayTimeout, GetHTTPStatusCode(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatusCode(errors.New("boom")))
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(NewUpstreamError("quota exceeded", nil))
	assert.Equal(t, ErrorTypeUpstream, resp.Error.Type)
	assert.Equal(t, "quota exceeded", resp.Error.Message)

	resp = NewErrorResponse(errors.New("boom"))
	assert.Equal(t, ErrorTypeInternal, resp.Error.Type)
	assert.Equal(t, "boom", resp.Error.Message)
}
