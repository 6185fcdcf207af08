package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/jwt"
	"github.com/mx-space/mdx-core/internal/pkg/response"
)

const ContextKeySubject = "auth_subject"

// TokenParser verifies a bearer token.
type TokenParser interface {
	Parse(token string) (*jwt.Claims, error)
}

// Auth rejects requests without a valid bearer token.
func Auth(p TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := parse(p, extractToken(c))
		if err != nil {
			response.Error(c, apperr.Unauthorized("invalid or missing token"))
			return
		}
		c.Set(ContextKeySubject, claims.Subject)
		c.Next()
	}
}

// OptionalAuth sets the subject if a valid token is present, but does not
// block the request.
func OptionalAuth(p TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := parse(p, extractToken(c)); err == nil {
			c.Set(ContextKeySubject, claims.Subject)
		}
		c.Next()
	}
}

// CurrentSubject returns the authenticated subject, or "".
func CurrentSubject(c *gin.Context) string {
	return c.GetString(ContextKeySubject)
}

// IsAuthenticated returns true if the request carried a valid token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentSubject(c) != ""
}

func parse(p TokenParser, token string) (*jwt.Claims, error) {
	if token == "" {
		return nil, apperr.Unauthorized("token is required")
	}
	return p.Parse(token)
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
