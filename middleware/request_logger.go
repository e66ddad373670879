package middleware

import (
	"time"

	"github.com/AnTengye/keydates/pkg/logger"
	"github.com/gin-gonic/gin"
)

// RequestLogger writes one access log line per request, at a level chosen
// by the response status.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"bytes_in", c.Request.ContentLength,
			"bytes_out", c.Writer.Size(),
		}
		if query != "" {
			attrs = append(attrs, "query", query)
		}

		// The handler may have enriched the request context with document fields.
		ctx := c.Request.Context()
		switch {
		case status >= 500:
			logger.Error(ctx, "http.request.completed", attrs...)
		case status >= 400:
			logger.Warn(ctx, "http.request.completed", attrs...)
		default:
			logger.Info(ctx, "http.request.completed", attrs...)
		}
	}
}
