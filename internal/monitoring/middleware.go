package monitoring

import (
	"time"

	"github.com/gin-gonic/gin"
)

// MonitoringMiddleware records metrics and logs every request served by the read-only view
func MonitoringMiddleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		metrics.RecordRequest(path, statusCode)
		logger.RequestLogger(c.Request.Method, c.Request.URL.Path, c.ClientIP(), statusCode, duration)

		for _, err := range c.Errors {
			logger.Error("Request Error",
				"error", err.Err.Error(),
				"path", c.Request.URL.Path,
				"status_code", statusCode,
			)
		}
	}
}
