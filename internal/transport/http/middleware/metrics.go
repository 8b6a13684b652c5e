package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPRecorder receives request measurements. telemetry.SyncMetrics implements it.
type HTTPRecorder interface {
	HTTPRequestStarted()
	HTTPRequestFinished(method, route, status string, elapsed time.Duration)
}

// Metrics returns a Gin middleware that records request counts, latency and in-flight requests.
// A nil recorder yields a pass-through middleware.
func Metrics(recorder HTTPRecorder) gin.HandlerFunc {
	if recorder == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		recorder.HTTPRequestStarted()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		recorder.HTTPRequestFinished(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
