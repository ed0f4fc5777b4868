// Package middleware provides HTTP middleware functions for request logging and processing.
package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kneoio/KneoBroadcaster-sub002/internal/logger"
)

// RequestLogger returns a Gin middleware for logging HTTP requests. Player
// polling of manifests and segments is logged at debug level.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)

		level := zerolog.InfoLevel
		if isPlayerRequest(path) {
			level = zerolog.DebugLevel
		}
		if c.Writer.Status() >= 500 {
			level = zerolog.WarnLevel
		}

		logger.Log.WithLevel(level).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")

		// Log errors separately if any occurred during request processing
		if len(c.Errors) > 0 {
			logger.Log.Error().
				Strs("errors", c.Errors.Errors()).
				Str("path", path).
				Msg("Request completed with errors")
		}
	}
}

func isPlayerRequest(path string) bool {
	return strings.Contains(path, "/radio/")
}
