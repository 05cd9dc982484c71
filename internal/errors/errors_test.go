package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name       string
		err        *AppError
		category   ErrorCategory
		status     int
		retryable  bool
		wantPrefix string
	}{
		{name: "validation", err: NewValidationError("limit must be positive", "limit"), category: CategoryValidation, status: http.StatusBadRequest, wantPrefix: "[VALIDATION_ERROR]"},
		{name: "not found", err: NewNotFoundError("report", "latest"), category: CategoryNotFound, status: http.StatusNotFound, wantPrefix: "[NOT_FOUND]"},
		{name: "upstream fetch", err: NewUpstreamFetchError("vendors", cause), category: CategoryUpstreamFetch, status: http.StatusBadGateway, retryable: true, wantPrefix: "[UPSTREAM_FETCH_ERROR]"},
		{name: "persistence", err: NewPersistenceError("data_quality_reports", cause), category: CategoryPersistence, status: http.StatusInternalServerError, retryable: true, wantPrefix: "[PERSISTENCE_ERROR]"},
		{name: "unavailable", err: NewUnavailableError("push", cause), category: CategoryUnavailable, status: http.StatusServiceUnavailable, retryable: true, wantPrefix: "[SERVICE_UNAVAILABLE]"},
		{name: "rate limit", err: NewRateLimitError("1h"), category: CategoryRateLimit, status: http.StatusTooManyRequests, wantPrefix: "[RATE_LIMIT_EXCEEDED]"},
		{name: "unauthorized", err: NewUnauthorizedError("missing token", nil), category: CategoryUnauthorized, status: http.StatusUnauthorized, wantPrefix: "[UNAUTHORIZED]"},
		{name: "timeout", err: NewTimeoutError("run timed out", cause), category: CategoryTimeout, status: http.StatusGatewayTimeout, retryable: true, wantPrefix: "[TIMEOUT_ERROR]"},
		{name: "configuration", err: NewConfigurationError("bad timezone", cause), category: CategoryConfiguration, status: http.StatusInternalServerError, wantPrefix: "[CONFIGURATION_ERROR]"},
		{name: "internal", err: NewInternalError("oops", cause), category: CategoryInternal, status: http.StatusInternalServerError, wantPrefix: "[INTERNAL_ERROR]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, tt.err.Category)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.retryable, IsRetryableError(tt.err))
			assert.Contains(t, tt.err.Error(), tt.wantPrefix)
			assert.Equal(t, tt.category, CategoryOf(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := NewPersistenceError("reports", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFoundError("report", "x")))
	assert.True(t, IsNotFound(fmt.Errorf("get: %w", NewNotFoundError("report", "x"))))
	assert.False(t, IsNotFound(NewValidationError("bad", "")))
	assert.False(t, IsNotFound(errors.New("plain")))
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category ErrorCategory
	}{
		{name: "nil stays nil", err: nil},
		{name: "app error passes through", err: NewRateLimitError("1m"), category: CategoryRateLimit},
		{name: "wrapped app error is found", err: fmt.Errorf("ctx: %w", NewNotFoundError("doc", "a")), category: CategoryNotFound},
		{name: "deadline", err: context.DeadlineExceeded, category: CategoryTimeout},
		{name: "cancelled", err: context.Canceled, category: CategoryTimeout},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), category: CategoryUnavailable},
		{name: "anything else", err: errors.New("unexpected"), category: CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAppError(tt.err)
			if tt.err == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.category, got.Category)
		})
	}
}

func TestIsRetryableError_Nil(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ignored"))

	base := errors.New("base")
	wrapped := WrapError(base, "loading %s", "vendors")
	assert.EqualError(t, wrapped, "loading vendors: base")
	assert.ErrorIs(t, wrapped, base)
}

func TestErrorHandlerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(NewNotFoundError("report", "latest"))
	})
	r.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/missing", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body["category"])

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/ok", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecoveryHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryHandler())
	r.GET("/panic", func(c *gin.Context) {
		panic("kaboom")
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/panic", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal")
}
