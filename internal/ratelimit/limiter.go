package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/monitoring"
)

const (
	ScopeAPI     = "api"
	ScopeTrigger = "trigger"

	backendRedis  = "redis"
	backendMemory = "memory"
)

// Config holds rate limiter configuration
type Config struct {
	APILimitPerMinute   int
	TriggerLimitPerHour int
	// MaxFallbackKeys bounds the in-memory limiter table before it is reset
	MaxFallbackKeys int
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		APILimitPerMinute:   120,
		TriggerLimitPerHour: 12,
		MaxFallbackKeys:     1000,
	}
}

// Rate is a request budget over a period
type Rate struct {
	Limit  int
	Period time.Duration
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	Backend    string
}

// RateLimiter provides distributed rate limiting with Redis and in-memory fallback
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	config       Config

	fallbackLimiters map[string]*rate.Limiter
	fallbackMutex    sync.Mutex
	now              func() time.Time
}

// NewRateLimiter creates a new rate limiter with Redis and in-memory fallback
func NewRateLimiter(redisClient *RedisClient, config Config) *RateLimiter {
	if config.MaxFallbackKeys <= 0 {
		config.MaxFallbackKeys = DefaultConfig().MaxFallbackKeys
	}
	rl := &RateLimiter{
		redisClient:      redisClient,
		config:           config,
		fallbackLimiters: make(map[string]*rate.Limiter),
		now:              time.Now,
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	return rl
}

// AllowAPI checks the per-minute budget of a client on read routes
func (rl *RateLimiter) AllowAPI(ctx context.Context, ip string) (*Result, error) {
	return rl.Allow(ctx, fmt.Sprintf("ratelimit:%s:%s", ScopeAPI, ip), Rate{Limit: rl.config.APILimitPerMinute, Period: time.Minute})
}

// AllowTrigger checks the per-hour budget of a client on manual job triggers
func (rl *RateLimiter) AllowTrigger(ctx context.Context, ip string) (*Result, error) {
	return rl.Allow(ctx, fmt.Sprintf("ratelimit:%s:%s", ScopeTrigger, ip), Rate{Limit: rl.config.TriggerLimitPerHour, Period: time.Hour})
}

// Allow consumes one request from key's budget using Redis, or the
// in-memory fallback when Redis is disabled or failing
func (rl *RateLimiter) Allow(ctx context.Context, key string, r Rate) (*Result, error) {
	if r.Limit <= 0 || r.Period <= 0 {
		return nil, fmt.Errorf("invalid rate %d per %s", r.Limit, r.Period)
	}

	if rl.redisClient.IsEnabled() && rl.redisLimiter != nil {
		result, err := rl.allowRedis(ctx, key, r)
		if err == nil {
			return result, nil
		}
		slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
	}

	return rl.allowFallback(key, r), nil
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string, r Rate) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   r.Limit,
		Burst:  r.Limit,
		Period: r.Period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    rl.now().Add(res.ResetAfter),
		RetryAfter: res.RetryAfter,
		Backend:    backendRedis,
	}, nil
}

// allowFallback performs rate limiting using an in-memory token bucket
// sized so a fresh client can spend its whole budget at once
func (rl *RateLimiter) allowFallback(key string, r Rate) *Result {
	now := rl.now()

	rl.fallbackMutex.Lock()
	limiter, exists := rl.fallbackLimiters[key]
	if !exists {
		if len(rl.fallbackLimiters) >= rl.config.MaxFallbackKeys {
			slog.Info("Resetting fallback rate limiters", "count", len(rl.fallbackLimiters))
			rl.fallbackLimiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rate.Limit(float64(r.Limit)/r.Period.Seconds()), r.Limit)
		rl.fallbackLimiters[key] = limiter
	}
	rl.fallbackMutex.Unlock()

	allowed := limiter.AllowN(now, 1)
	tokens := limiter.TokensAt(now)

	remaining := int(tokens)
	if remaining < 0 {
		remaining = 0
	}

	// time until one token is available again
	perToken := time.Duration(float64(r.Period) / float64(r.Limit))
	result := &Result{
		Allowed:   allowed,
		Limit:     r.Limit,
		Remaining: remaining,
		ResetAt:   now.Add(time.Duration((float64(r.Limit) - tokens) * float64(perToken))),
		Backend:   backendMemory,
	}
	if !allowed {
		result.RetryAfter = time.Duration((1 - tokens) * float64(perToken))
	}
	return result
}

// Reset clears a client's budget in one scope
func (rl *RateLimiter) Reset(ctx context.Context, scope, ip string) error {
	key := fmt.Sprintf("ratelimit:%s:%s", scope, ip)

	rl.fallbackMutex.Lock()
	delete(rl.fallbackLimiters, key)
	rl.fallbackMutex.Unlock()

	if rl.redisClient.IsEnabled() && rl.redisLimiter != nil {
		if err := rl.redisLimiter.Reset(ctx, key); err != nil {
			return fmt.Errorf("failed to reset %s: %w", key, err)
		}
	}
	slog.Info("Rate limit reset", "scope", scope, "ip", ip)
	return nil
}

func recordRejection(scope string, result *Result) {
	monitoring.RateLimitRejections.WithLabelValues(scope, result.Backend).Inc()
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.Lock()
	fallbackCount := len(rl.fallbackLimiters)
	rl.fallbackMutex.Unlock()

	stats := map[string]interface{}{
		"redis_enabled":          rl.redisClient.IsEnabled(),
		"fallback_limiters":      fallbackCount,
		"api_limit_per_minute":   rl.config.APILimitPerMinute,
		"trigger_limit_per_hour": rl.config.TriggerLimitPerHour,
	}

	if rl.redisClient.IsEnabled() {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
	}

	return stats
}
