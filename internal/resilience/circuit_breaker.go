package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	apperrors "github.com/ZanzyTHEbar/fairplate-analytics/internal/errors"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/monitoring"
)

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold uint32        `json:"failure_threshold"`
	RecoveryTimeout  time.Duration `json:"recovery_timeout"`
	// HalfOpenRequests is the number of probes let through after the timeout
	HalfOpenRequests uint32 `json:"half_open_requests"`
}

// CircuitBreaker guards calls to an external transport
type CircuitBreaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// NewCircuitBreaker creates a breaker that opens after FailureThreshold consecutive failures
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.HalfOpenRequests == 0 {
		config.HalfOpenRequests = 1
	}

	monitoring.CircuitBreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.HalfOpenRequests,
		Timeout:     config.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			monitoring.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	}

	return &CircuitBreaker{
		name: name,
		cb:   gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Call executes fn with circuit breaker protection. A rejected call returns an
// unavailable error without invoking fn.
func (b *CircuitBreaker) Call(fn func() error) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.NewUnavailableError(b.name, err)
	}
	return err
}

// State returns the current breaker state
func (b *CircuitBreaker) State() string {
	return b.cb.State().String()
}

// Name returns the breaker name
func (b *CircuitBreaker) Name() string {
	return b.name
}

// Counts returns the failure counters of the current generation
func (b *CircuitBreaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}

// CircuitBreakerRegistry hands out named breakers
type CircuitBreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewCircuitBreakerRegistry creates an empty registry
func NewCircuitBreakerRegistry() *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{breakers: make(map[string]*CircuitBreaker)}
}

// GetOrCreate returns the named breaker, creating it with config on first use
func (r *CircuitBreakerRegistry) GetOrCreate(name string, config CircuitBreakerConfig) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := NewCircuitBreaker(name, config)
	r.breakers[name] = b
	return b
}

// GetStats returns the state of every registered breaker
func (r *CircuitBreakerRegistry) GetStats() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]interface{}, len(r.breakers))
	for name, b := range r.breakers {
		counts := b.Counts()
		stats[name] = map[string]interface{}{
			"state":                b.State(),
			"requests":             counts.Requests,
			"consecutive_failures": counts.ConsecutiveFailures,
		}
	}
	return stats
}
