package newsletter

import (
	"github.com/gin-gonic/gin"

	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/pkg/cron"
	"github.com/mx-space/mdx-core/internal/pkg/pagination"
	"github.com/mx-space/mdx-core/internal/pkg/response"
)

type Handler struct {
	svc       *Service
	scheduler *cron.Scheduler
}

func NewHandler(svc *Service, scheduler *cron.Scheduler) *Handler {
	return &Handler{svc: svc, scheduler: scheduler}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/newsletter", authMW)
	g.GET("", h.list)
	g.POST("/send", h.send)
}

func (h *Handler) list(c *gin.Context) {
	rows, pag, err := h.svc.List(c.Request.Context(), models.NewsletterStatus(c.Query("status")), pagination.FromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, rows, pag)
}

// send drains the queue in the background through the scheduler.
func (h *Handler) send(c *gin.Context) {
	if err := h.scheduler.Run(c.Request.Context(), JobName); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"started": true})
}
