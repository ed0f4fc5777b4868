package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/metrics"
)

// Metrics counts finished requests by status code.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		m.ObserveRequest(c.Writer.Status())
	}
}
