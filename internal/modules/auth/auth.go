// Package auth issues owner tokens. There is a single owner configured by
// username and bcrypt hash; no accounts live in the database.
package auth

import (
	"crypto/subtle"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mx-space/mdx-core/internal/middleware"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/response"
)

const RoleAdmin = "admin"

type Signer interface {
	Sign(subject, role string, ttl time.Duration) (string, error)
}

type Options struct {
	Username     string
	PasswordHash string
	TokenTTL     time.Duration
	Logger       *zap.Logger
	Now          func() time.Time
}

type LoginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service struct {
	signer Signer
	opts   Options
}

func NewService(signer Signer, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 30 * 24 * time.Hour
	}
	return &Service{signer: signer, opts: opts}
}

// Login checks the owner credentials and signs a token.
func (s *Service) Login(username, password string) (*Session, error) {
	if s.opts.PasswordHash == "" {
		return nil, apperr.NotConfigured("admin")
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.opts.Username)) == 1
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passErr := bcrypt.CompareHashAndPassword([]byte(s.opts.PasswordHash), []byte(password))
	if !userOK || passErr != nil {
		s.opts.Logger.Warn("login rejected", zap.String("username", username))
		return nil, apperr.Unauthorized("invalid username or password")
	}

	token, err := s.signer.Sign(s.opts.Username, RoleAdmin, s.opts.TokenTTL)
	if err != nil {
		return nil, apperr.Internal("auth", err)
	}
	s.opts.Logger.Info("owner logged in")
	return &Session{Token: token, ExpiresAt: s.opts.Now().Add(s.opts.TokenTTL).UTC()}, nil
}

// HashPassword returns a bcrypt hash suitable for admin.password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", apperr.Invalid("password is empty")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/auth")
	g.POST("/login", h.login)
	g.GET("/check", h.check)
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	sess, err := h.svc.Login(dto.Username, dto.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sess)
}

// check relies on OptionalAuth having run on the group.
func (h *Handler) check(c *gin.Context) {
	response.OK(c, gin.H{
		"ok":      middleware.IsAuthenticated(c),
		"subject": middleware.CurrentSubject(c),
	})
}
