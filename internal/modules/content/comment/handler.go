package comment

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/pagination"
	"github.com/mx-space/mdx-core/internal/pkg/response"
)

type Handler struct {
	svc   *Service
	guard VoteGuard
}

// NewHandler builds the comment handler. guard may be nil, in which case
// repeated votes are not limited.
func NewHandler(svc *Service, guard VoteGuard) *Handler {
	return &Handler{svc: svc, guard: guard}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/comments")

	g.GET("/thread", h.thread)
	g.POST("", h.create)
	g.POST("/:id/vote", h.vote)

	a := g.Group("", authMW)
	a.GET("", h.list)
	a.GET("/:id", h.get)
	a.POST("/:id/reply", h.reply)
	a.PATCH("/batch", h.moderate)
	a.DELETE("/:id", h.delete)
}

func (h *Handler) thread(c *gin.Context) {
	var f Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	t, err := h.svc.Thread(c.Request.Context(), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, t)
}

func (h *Handler) create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	cm, err := h.svc.Create(c.Request.Context(), in, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toView(cm))
}

func (h *Handler) vote(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in VoteInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if !in.Direction.Valid() {
		response.Error(c, apperr.Invalid("direction must be %q or %q", models.VoteUp, models.VoteDown))
		return
	}

	ctx := c.Request.Context()
	if h.guard != nil {
		first, err := h.guard.FirstVote(ctx, id, c.ClientIP())
		if err != nil {
			response.Error(c, apperr.Internal("redis", err))
			return
		}
		if !first {
			response.Error(c, apperr.Conflict("already voted"))
			return
		}
	}

	votes, err := h.svc.Cache().IncrementVote(ctx, id, in.Direction)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, votes)
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Status:      models.CommentStatus(c.Query("status")),
		ArticleUID:  c.Query("uid"),
		ArticlePath: c.Query("path"),
	}
	items, pag, err := h.svc.List(c.Request.Context(), q, pagination.FromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, items, pag)
}

func (h *Handler) get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	cm, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, cm)
}

func (h *Handler) reply(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in ReplyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	cm, err := h.svc.Reply(c.Request.Context(), id, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cm)
}

func (h *Handler) moderate(c *gin.Context) {
	var in ModerateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	n, err := h.svc.Moderate(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"affected": n})
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if _, err := h.svc.Moderate(c.Request.Context(), ModerateInput{IDs: []int64{id}, Action: ActionDelete}); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid comment id")
		return 0, false
	}
	return id, true
}
