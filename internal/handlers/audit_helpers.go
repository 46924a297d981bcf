package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"broadcast-room/internal/middleware"
)

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(middleware.RequestIDKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader(middleware.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *string {
	if header := c.GetHeader("X-User-ID"); header != "" {
		return &header
	}
	return nil
}
