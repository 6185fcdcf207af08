package visit

import (
	"github.com/gin-gonic/gin"

	"github.com/mx-space/mdx-core/internal/pkg/response"
)

type Handler struct {
	rec *Recorder
}

func NewHandler(rec *Recorder) *Handler {
	return &Handler{rec: rec}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	visits := rg.Group("/visits")
	visits.POST("", h.hit)
	visits.GET("/summary", authMW, h.summary)
}

func (h *Handler) hit(c *gin.Context) {
	var in Hit
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ua := c.GetHeader("User-Agent")
	if isBotUA(ua) {
		response.NoContent(c)
		return
	}
	if err := h.rec.Record(c.Request.Context(), in, c.ClientIP(), ua); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) summary(c *gin.Context) {
	var q SummaryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	rows, err := h.rec.Summary(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rows)
}
