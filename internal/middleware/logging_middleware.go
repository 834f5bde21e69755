// internal/middleware/logging_middleware.go
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"fingerprint-bridge/internal/utils"
)

// LoggingMiddleware logs every request once it has been served, tagged with
// the request ID when RequestIDMiddleware ran first
func LoggingMiddleware(logger *utils.ServiceLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path += "?" + c.Request.URL.RawQuery
		}

		requestLogger := logger
		if requestID := c.GetString(utils.RequestIDKey); requestID != "" {
			requestLogger = logger.WithRequestID(requestID)
		}

		requestLogger.LogAPIRequest(
			c.Request.Method,
			path,
			c.Request.UserAgent(),
			c.ClientIP(),
			c.Writer.Status(),
			time.Since(startTime),
		)
	}
}
