package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const responseStartKey = "response_start"

// WithResponseMeta records when request handling began.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseStartKey, time.Now())
		c.Next()
	}
}

// ExtractMeta returns the response metadata for the current request.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	value, exists := c.Get(responseStartKey)
	if !exists {
		return nil
	}
	start, ok := value.(time.Time)
	if !ok {
		return nil
	}
	return map[string]interface{}{"processing_time_ms": time.Since(start).Milliseconds()}
}
