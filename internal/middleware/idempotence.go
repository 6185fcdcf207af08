package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/response"
)

const (
	idempotenceHeader = "X-Idempotence"
	idempotenceTTL    = 60 * time.Second
	idempotencePrefix = "mdx:idempotence:"
)

// Claimer holds short-lived markers.
type Claimer interface {
	SetOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Idempotence rejects a POST that repeats an identical one within a minute.
// The marker is dropped again when the first request fails, so a client can
// retry after an error. An X-Idempotence value only collides with the same
// value sent by the same client to the same route.
func Idempotence(cl Claimer, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		key, err := idempotenceKey(c)
		if err != nil || key == "" {
			c.Next()
			return
		}
		key = idempotencePrefix + key

		ctx := c.Request.Context()
		first, err := cl.SetOnce(ctx, key, idempotenceTTL)
		if err != nil {
			log.Warn("idempotence store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !first {
			response.Error(c, apperr.Conflict("duplicate request"))
			return
		}

		c.Next()

		if s := c.Writer.Status(); s < 200 || s >= 300 {
			if err := cl.Release(context.WithoutCancel(ctx), key); err != nil {
				log.Warn("idempotence marker not released",
					zap.String("path", c.FullPath()),
					zap.Int("status", s),
					zap.Error(err),
				)
			}
		}
	}
}

func idempotenceKey(c *gin.Context) (string, error) {
	if hdr := c.GetHeader(idempotenceHeader); hdr != "" {
		return digest(c.Request.Method, c.Request.URL.Path, c.ClientIP(), hdr), nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	if len(body) == 0 {
		return "", nil
	}
	return digest(c.Request.Method, c.Request.URL.String(), string(body), c.Request.UserAgent(), c.ClientIP()), nil
}

func digest(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
