package aggregate

import (
	"github.com/gin-gonic/gin"

	"github.com/mx-space/mdx-core/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	agg := rg.Group("/aggregate")
	agg.GET("", h.aggregate)
	agg.GET("/stat", authMW, h.stat)
}

func (h *Handler) aggregate(c *gin.Context) {
	data, err := h.svc.Aggregate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, data)
}

func (h *Handler) stat(c *gin.Context) {
	data, err := h.svc.Stat(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, data)
}
