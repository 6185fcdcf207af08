package post

import (
	"github.com/gin-gonic/gin"

	"github.com/mx-space/mdx-core/internal/middleware"
	"github.com/mx-space/mdx-core/internal/modules/content/store"
	"github.com/mx-space/mdx-core/internal/modules/stats/visit"
	"github.com/mx-space/mdx-core/internal/pkg/response"
)

// Handler handles document HTTP requests. Anonymous callers only see
// published documents.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts post routes onto the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	posts := rg.Group("/posts")
	posts.GET("", h.list)
	posts.GET("/*path", h.get)

	authed := posts.Group("", authMW)
	authed.PUT("", h.upsert)
	authed.POST("/archive", h.archive)
	authed.POST("/unarchive", h.unarchive)
	authed.POST("/move", h.move)
	authed.DELETE("", h.delete)
}

// list GET /posts?category=
func (h *Handler) list(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	docs, err := h.svc.List(c.Request.Context(), q.Category)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !middleware.IsAuthenticated(c) {
		out := make([]*store.Document, 0, len(docs))
		for _, d := range docs {
			if visible(d) {
				out = append(out, d)
			}
		}
		docs = out
	}
	if docs == nil {
		docs = []*store.Document{}
	}
	response.OK(c, docs)
}

// get GET /posts/<category>/<name>
func (h *Handler) get(c *gin.Context) {
	doc, err := h.svc.Get(c.Request.Context(), c.Param("path"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !middleware.IsAuthenticated(c) && !visible(doc) {
		response.NotFound(c)
		return
	}
	c.Set(visit.ArticleUIDKey, doc.UID())
	response.OK(c, doc)
}

// upsert PUT /posts
func (h *Handler) upsert(c *gin.Context) {
	var dto UpsertDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.svc.Upsert(c.Request.Context(), dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	if res.Created {
		response.Created(c, res)
		return
	}
	response.OK(c, res)
}

// archive POST /posts/archive
func (h *Handler) archive(c *gin.Context) {
	var dto ArchiveDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.svc.Archive(c.Request.Context(), dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// unarchive POST /posts/unarchive
func (h *Handler) unarchive(c *gin.Context) {
	var dto ArchiveDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.svc.Unarchive(c.Request.Context(), dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// move POST /posts/move
func (h *Handler) move(c *gin.Context) {
	var dto MoveDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.svc.Move(c.Request.Context(), dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// delete DELETE /posts?path=&sha=
func (h *Handler) delete(c *gin.Context) {
	var q DeleteQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	res, err := h.svc.Delete(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}
