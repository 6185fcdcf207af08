package visit

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Middleware records successful anonymous GET requests under prefix as
// visits. The recorded path has the prefix removed.
func Middleware(r *Recorder, prefix string) gin.HandlerFunc {
	prefix = "/" + strings.Trim(prefix, "/")
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != http.MethodGet {
			return
		}
		raw := c.Request.URL.Path
		if !strings.HasPrefix(raw, prefix+"/") {
			return
		}
		if s := c.Writer.Status(); s < 200 || s >= 300 {
			return
		}
		ua := c.GetHeader("User-Agent")
		if isBotUA(ua) || c.GetHeader("Authorization") != "" {
			return
		}
		ip := strings.TrimSpace(c.ClientIP())
		if isLoopback(ip) {
			return
		}

		hit := Hit{
			Path:       strings.TrimPrefix(raw, prefix),
			ArticleUID: c.GetString(ArticleUIDKey),
			Referrer:   c.GetHeader("Referer"),
		}
		if err := r.Record(context.WithoutCancel(c.Request.Context()), hit, ip, ua); err != nil {
			r.logger.Warn("visit dropped", zap.String("path", hit.Path), zap.Error(err))
		}
	}
}

// ArticleUIDKey is the gin context key a document handler sets so the
// middleware can attach the article uid to the visit.
const ArticleUIDKey = "visit.article_uid"

func isBotUA(ua string) bool {
	if strings.TrimSpace(ua) == "" {
		return true
	}
	lower := strings.ToLower(ua)
	for _, kw := range []string{"bot", "crawler", "spider", "headless", "wget", "curl", "python-requests", "go-http", "java/", "scrapy"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isLoopback(ip string) bool {
	return ip == "" || ip == "127.0.0.1" || ip == "localhost" || ip == "::1"
}

// normalizePath makes a stored path: leading slash, no query, no trailing
// slash and no document extension.
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	p = strings.TrimSuffix(p, ".mdx")
	return truncate("/" + p)
}
