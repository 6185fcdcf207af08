package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/response"
)

const rateLimitPrefix = "mdx:rate_limit:"

// Limiter counts hits in a fixed window.
type Limiter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimit allows max anonymous requests per client ip in each window.
// Authenticated requests pass through. Limiter errors let the request in.
func RateLimit(l Limiter, max int, window time.Duration, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsAuthenticated(c) {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		count, ttl, err := l.Hit(c.Request.Context(), rateLimitPrefix+ip, window)
		if err != nil {
			log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if count > int64(max) {
			if ttl <= 0 {
				ttl = window
			}
			response.Error(c, apperr.TooMany(ttl, "too many requests, slow down"))
			return
		}
		c.Next()
	}
}
