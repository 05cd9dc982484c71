package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/fairplate-analytics/internal/errors"
)

// APIRateLimitMiddleware limits read traffic per client IP
func (rl *RateLimiter) APIRateLimitMiddleware() gin.HandlerFunc {
	return rl.middleware(ScopeAPI, rl.AllowAPI)
}

// TriggerRateLimitMiddleware limits manual job triggers per client IP
func (rl *RateLimiter) TriggerRateLimitMiddleware() gin.HandlerFunc {
	return rl.middleware(ScopeTrigger, rl.AllowTrigger)
}

func (rl *RateLimiter) middleware(scope string, allow func(ctx context.Context, ip string) (*Result, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := allow(c.Request.Context(), ip)
		if err != nil {
			// a broken limiter never blocks traffic
			slog.Error("Rate limit check failed", "scope", scope, "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			recordRejection(scope, result)

			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			appErr := apperrors.NewRateLimitError(strconv.Itoa(retryAfter) + "s")
			appErr.RequestID = c.GetHeader("X-Request-ID")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, appErr)
			return
		}

		c.Next()
	}
}

// HandleRateLimitStatus returns the configured budgets and backend state
func (rl *RateLimiter) HandleRateLimitStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := rl.GetStats()
		stats["ip"] = c.ClientIP()
		c.JSON(http.StatusOK, stats)
	}
}
