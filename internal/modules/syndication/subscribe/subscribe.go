// Package subscribe manages newsletter subscribers.
package subscribe

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/pagination"
	"github.com/mx-space/mdx-core/internal/pkg/response"
)

type SubscribeDTO struct {
	Email  string `json:"email"  binding:"required,email"`
	Source string `json:"source"`
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service { return &Service{db: db, now: time.Now} }

// Subscribe adds email as an active subscriber. Subscribing again is a no-op
// for active subscribers and reactivates unsubscribed ones; the unsubscribe
// token never changes.
func (s *Service) Subscribe(ctx context.Context, dto SubscribeDTO) (*models.SubscriberModel, error) {
	email, err := normalizeEmail(dto.Email)
	if err != nil {
		return nil, err
	}
	sub := models.SubscriberModel{
		Email:  email,
		Status: models.SubscriberActive,
		Source: strings.TrimSpace(dto.Source),
		Token:  uuid.NewString(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":          models.SubscriberActive,
			"unsubscribed_at": nil,
			"updated_at":      s.now(),
		}),
	}).Create(&sub).Error
	if err != nil {
		return nil, apperr.Internal("db", err)
	}
	return s.GetByEmail(ctx, email)
}

// Unsubscribe deactivates the subscriber owning token. Unsubscribing twice
// succeeds.
func (s *Service) Unsubscribe(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.Invalid("token is required")
	}
	var sub models.SubscriberModel
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("subscription not found")
		}
		return apperr.Internal("db", err)
	}
	if sub.Status == models.SubscriberUnsubscribed {
		return nil
	}
	now := s.now()
	err := s.db.WithContext(ctx).Model(&sub).Updates(map[string]any{
		"status":          models.SubscriberUnsubscribed,
		"unsubscribed_at": &now,
	}).Error
	if err != nil {
		return apperr.Internal("db", err)
	}
	return nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*models.SubscriberModel, error) {
	var sub models.SubscriberModel
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("subscriber not found")
		}
		return nil, apperr.Internal("db", err)
	}
	return &sub, nil
}

// Active returns every active subscriber, oldest first.
func (s *Service) Active(ctx context.Context) ([]models.SubscriberModel, error) {
	var subs []models.SubscriberModel
	err := s.db.WithContext(ctx).
		Where("status = ?", models.SubscriberActive).
		Order("created_at ASC").
		Find(&subs).Error
	if err != nil {
		return nil, apperr.Internal("db", err)
	}
	return subs, nil
}

func (s *Service) List(ctx context.Context, status models.SubscriberStatus, q pagination.Query) ([]models.SubscriberModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.SubscriberModel{}).Order("created_at DESC")
	if status != "" {
		tx = tx.Where("status = ?", status)
	}
	var subs []models.SubscriberModel
	pag, err := pagination.Paginate(tx, q, &subs)
	if err != nil {
		return nil, response.Pagination{}, apperr.Internal("db", err)
	}
	return subs, pag, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", apperr.Invalid("invalid email address")
	}
	return strings.ToLower(addr.Address), nil
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/subscribe")
	g.POST("", h.subscribe)
	g.GET("/unsubscribe", h.unsubscribe) // ?token=...
	g.POST("/unsubscribe", h.unsubscribe)
	g.GET("", authMW, h.list)
}

func (h *Handler) subscribe(c *gin.Context) {
	var dto SubscribeDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	sub, err := h.svc.Subscribe(c.Request.Context(), dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"email": sub.Email, "status": sub.Status})
}

func (h *Handler) unsubscribe(c *gin.Context) {
	if err := h.svc.Unsubscribe(c.Request.Context(), c.Query("token")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"unsubscribed": true})
}

func (h *Handler) list(c *gin.Context) {
	subs, pag, err := h.svc.List(c.Request.Context(), models.SubscriberStatus(c.Query("status")), pagination.FromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, subs, pag)
}
