package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/paradyne-ai/callcore/pkg/services"
)

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "validation error passes through verbatim",
			err:         services.NewValidationError("phone_number", "must be E.164"),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "validation error on field 'phone_number': must be E.164",
		},
		{
			name:        "authentication error stays bland",
			err:         services.NewAuthenticationError("signature mismatch for tenant t-1"),
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "authentication failed",
		},
		{
			name:        "authorization error",
			err:         services.NewAuthorizationError("agent belongs to another tenant"),
			wantStatus:  http.StatusForbidden,
			wantMessage: "forbidden",
		},
		{
			name:        "upstream error names only the system",
			err:         &services.UpstreamError{System: "provider_b", StatusCode: 503, Message: "boom", Transient: true},
			wantStatus:  http.StatusBadGateway,
			wantMessage: "provider_b request failed",
		},
		{
			name:        "wrapped not found",
			err:         fmt.Errorf("agent ag-9: %w", services.ErrNotFound),
			wantStatus:  http.StatusNotFound,
			wantMessage: "resource not found",
		},
		{
			name:        "already exists",
			err:         fmt.Errorf("schedule: %w", services.ErrAlreadyExists),
			wantStatus:  http.StatusConflict,
			wantMessage: "resource already exists",
		},
		{
			name:        "invalid input keeps its message",
			err:         fmt.Errorf("call c-1 is already completed: %w", services.ErrInvalidInput),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "call c-1 is already completed: " + services.ErrInvalidInput.Error(),
		},
		{
			name:        "rate limited",
			err:         services.ErrRateLimited,
			wantStatus:  http.StatusTooManyRequests,
			wantMessage: "rate limit exceeded",
		},
		{
			name:        "not configured",
			err:         fmt.Errorf("no provider b key for tenant t-1: %w", services.ErrNotConfigured),
			wantStatus:  http.StatusServiceUnavailable,
			wantMessage: "no provider b key for tenant t-1: " + services.ErrNotConfigured.Error(),
		},
		{
			name:        "unknown error is masked",
			err:         errors.New("pq: connection refused"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			he := mapServiceError(tt.err)
			assert.Equal(t, tt.wantStatus, he.Code)
			assert.Equal(t, tt.wantMessage, he.Message)
		})
	}
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "validation_error", errorCode(http.StatusBadRequest))
	assert.Equal(t, "unauthorized", errorCode(http.StatusUnauthorized))
	assert.Equal(t, "forbidden", errorCode(http.StatusForbidden))
	assert.Equal(t, "not_found", errorCode(http.StatusNotFound))
	assert.Equal(t, "conflict", errorCode(http.StatusConflict))
	assert.Equal(t, "rate_limited", errorCode(http.StatusTooManyRequests))
	assert.Equal(t, "upstream_error", errorCode(http.StatusBadGateway))
	assert.Equal(t, "not_configured", errorCode(http.StatusServiceUnavailable))
	assert.Equal(t, "internal_error", errorCode(http.StatusInternalServerError))
	assert.Equal(t, "internal_error", errorCode(http.StatusTeapot))
}
