package middleware

import (
	"time"

	"marketplace-ledger/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics observes request latency per matched route.
func Metrics(rec *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		rec.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
