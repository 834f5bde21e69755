// internal/middleware/metrics_middleware.go
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"fingerprint-bridge/internal/metrics"
)

// MetricsMiddleware records request latency per matched route
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(startTime))
	}
}
