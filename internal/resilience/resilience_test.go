package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ZanzyTHEbar/fairplate-analytics/internal/errors"
)

func fastRetry(attempts int) RetryConfig {
	cfg := JobRetryConfig(attempts, time.Millisecond)
	cfg.JitterEnabled = false
	return cfg
}

func TestRetryWithConfig(t *testing.T) {
	tests := []struct {
		name          string
		errs          []error
		attempts      int
		expectedCalls int
		expectErr     bool
	}{
		{
			name:          "succeeds first time",
			errs:          []error{nil},
			attempts:      3,
			expectedCalls: 1,
		},
		{
			name:          "retries retryable then succeeds",
			errs:          []error{apperrors.NewPersistenceError("reports", errors.New("locked")), nil},
			attempts:      3,
			expectedCalls: 2,
		},
		{
			name:          "stops on non-retryable",
			errs:          []error{apperrors.NewValidationError("bad", "field")},
			attempts:      3,
			expectedCalls: 1,
			expectErr:     true,
		},
		{
			name: "gives up after max attempts",
			errs: []error{
				apperrors.NewUpstreamFetchError("vendors", errors.New("x")),
				apperrors.NewUpstreamFetchError("vendors", errors.New("x")),
				apperrors.NewUpstreamFetchError("vendors", errors.New("x")),
			},
			attempts:      3,
			expectedCalls: 3,
			expectErr:     true,
		},
		{
			name:          "plain errors are not retried",
			errs:          []error{errors.New("boom")},
			attempts:      3,
			expectedCalls: 1,
			expectErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			retries := 0
			cfg := fastRetry(tt.attempts)
			cfg.OnRetry = func(int, error, time.Duration) { retries++ }

			err := RetryWithConfig(context.Background(), cfg, func() error {
				err := tt.errs[calls]
				calls++
				return err
			})

			assert.Equal(t, tt.expectedCalls, calls)
			assert.Equal(t, tt.expectedCalls-1, retries)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithConfig(ctx, fastRetry(3), func() error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestCalculateDelayIsCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, BackoffFactor: 2}
	assert.Equal(t, time.Second, calculateDelay(cfg, 0))
	assert.Equal(t, 2*time.Second, calculateDelay(cfg, 1))
	assert.Equal(t, 3*time.Second, calculateDelay(cfg, 5))
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	b := NewCircuitBreaker("test-push", CircuitBreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Hour})
	failure := errors.New("publish failed")

	assert.ErrorIs(t, b.Call(func() error { return failure }), failure)
	assert.ErrorIs(t, b.Call(func() error { return failure }), failure)
	assert.Equal(t, "open", b.State())

	called := false
	err := b.Call(func() error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.Equal(t, apperrors.CategoryUnavailable, apperrors.CategoryOf(err))
}

func TestCircuitBreakerRegistry(t *testing.T) {
	r := NewCircuitBreakerRegistry()
	a := r.GetOrCreate("announcements", CircuitBreakerConfig{})
	b := r.GetOrCreate("announcements", CircuitBreakerConfig{FailureThreshold: 9})
	assert.Same(t, a, b)

	require.NoError(t, a.Call(func() error { return nil }))
	stats := r.GetStats()["announcements"].(map[string]interface{})
	assert.Equal(t, "closed", stats["state"])
	assert.Equal(t, uint32(1), stats["requests"])
}
