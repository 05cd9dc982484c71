package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
)

// MonitoringMiddleware records request metrics and logs every request
func MonitoringMiddleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		// label by route template to keep cardinality bounded
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RecordRequest(c.Request.Method, route, status, duration)

		logger.RequestLogger(c.Request.Method, c.Request.URL.Path, c.ClientIP(), c.GetHeader("User-Agent"), status, duration)

		if duration > 5*time.Second {
			logger.Warn("Slow request",
				"path", c.Request.URL.Path,
				"duration_ms", duration.Milliseconds(),
			)
		}
	}
}
