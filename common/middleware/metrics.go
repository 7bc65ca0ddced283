package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPRecorder records one finished request.
type HTTPRecorder interface {
	RecordHTTPRequest(method, path string, status int, duration time.Duration)
}

// Metrics tracks request counts and latency. Paths are labelled by route
// template so ids in URLs do not explode cardinality; unmatched routes share
// the "unmatched" label.
func Metrics(recorder HTTPRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if recorder == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		recorder.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
