package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/its-ayanshaikh/telemedicine-backend/pkg/metrics"
)

// Metrics records request counts and latency by route template, so
// /doctors/7/slots and /doctors/9/slots share a series.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		m.RequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
