package ratelimit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"propertyhub/internal/metrics"
)

// Middleware rejects clients over the limit with 429. Clients are keyed by
// the address gin resolves from trusted proxy headers.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.AllowRequest(c.ClientIP()) {
			metrics.RateLimited.WithLabelValues(c.FullPath()).Inc()
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
