package api

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/photostack/internal/observability"
)

// LoggingMiddleware logs each request and records its duration.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()

		observability.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).
			Observe(elapsed.Seconds())

		logger := slog.Info
		if status >= 500 {
			logger = slog.Error
		}
		logger("http request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"client", c.ClientIP())
	}
}
