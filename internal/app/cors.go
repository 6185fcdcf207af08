package app

import (
	"net/url"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mx-space/mdx-core/internal/middleware"
)

func (a *App) newRouter() *gin.Engine {
	if a.cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(a.logger.Named("HTTP")))
	router.Use(cors.New(corsConfig(a.cfg.AllowedOrigins, a.cfg.IsDev())))
	return router
}

// corsConfig allows every origin in development or when no origins are
// configured; otherwise only origins matching one of the patterns.
func corsConfig(patterns []string, dev bool) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Idempotence"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
	}
	if len(patterns) == 0 || dev {
		c.AllowOriginFunc = func(string) bool { return true }
		return c
	}
	c.AllowOriginFunc = func(origin string) bool {
		host := extractOriginHost(origin)
		for _, p := range patterns {
			if matchOriginPattern(p, host) {
				return true
			}
		}
		return false
	}
	return c
}

// extractOriginHost returns the "host[:port]" portion of an origin URL.
func extractOriginHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return origin
	}
	return u.Host
}

// matchOriginPattern supports exact hosts, "*.example.com" and "host:*".
func matchOriginPattern(pattern, host string) bool {
	if pattern == host {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(host, pattern[1:])
	}
	if strings.HasSuffix(pattern, ":*") {
		return strings.HasPrefix(host, pattern[:len(pattern)-1])
	}
	return false
}
