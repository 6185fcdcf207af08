// Package category exposes the content store's categories over HTTP.
package category

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mx-space/mdx-core/internal/pkg/response"
)

// Store is the part of the content store this handler needs.
type Store interface {
	ListAllCategories(ctx context.Context) ([]string, error)
	CreateCategory(ctx context.Context, name string) (bool, error)
	DeleteCategory(ctx context.Context, name string) (bool, error)
}

type CreateDTO struct {
	Name string `json:"name" binding:"required"`
}

type Handler struct {
	store Store
}

func NewHandler(st Store) *Handler {
	return &Handler{store: st}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	cats := rg.Group("/categories")
	cats.GET("", h.list)

	authed := cats.Group("", authMW)
	authed.POST("", h.create)
	authed.DELETE("/:name", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	names, err := h.store.ListAllCategories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, names)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	created, err := h.store.CreateCategory(c.Request.Context(), dto.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"name": dto.Name, "created": created})
}

func (h *Handler) delete(c *gin.Context) {
	deleted, err := h.store.DeleteCategory(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"name": c.Param("name"), "deleted": deleted})
}
