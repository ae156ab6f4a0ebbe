package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pvasseur/streamsync/internal/logger"
)

// requestIDMiddleware tags each request with a unique id, propagated through
// the request context so downstream log lines carry it
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		ctx := logger.ContextWithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func (s *Server) requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.logger == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		s.logger.WithFields(map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).InfoContext(c.Request.Context(), "request handled")
	}
}
