// Package response writes JSON bodies for handlers. Errors are always
// rendered through the apperr taxonomy so clients see one envelope shape.
package response

import (
	"math"
	"net/http"
	"reflect"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mx-space/mdx-core/internal/pkg/apperr"
)

type Pagination struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	TotalPage   int   `json:"total_page"`
	Size        int   `json:"size"`
	HasNextPage bool  `json:"has_next_page"`
}

// errorBody is the envelope of every failed request.
type errorBody struct {
	OK      int         `json:"ok"`
	Code    int         `json:"code"`
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

// OK writes 200. Slices are wrapped as {"data": [...]}.
func OK(c *gin.Context, data any) {
	if data != nil && reflect.ValueOf(data).Kind() == reflect.Slice {
		data = gin.H{"data": data}
	}
	c.JSON(http.StatusOK, data)
}

func Paged(c *gin.Context, data any, p Pagination) {
	c.JSON(http.StatusOK, gin.H{"data": data, "pagination": p})
}

func Created(c *gin.Context, data any) { c.JSON(http.StatusCreated, data) }

func NoContent(c *gin.Context) { c.Status(http.StatusNoContent) }

// BadRequest reports an INVALID_REQUEST with message shown as is.
func BadRequest(c *gin.Context, message string) {
	Error(c, apperr.Invalid("%s", message))
}

func NotFound(c *gin.Context) {
	Error(c, apperr.NotFound("not found"))
}

// Error aborts the request with err classified. Unexpected kinds are shown
// as "internal error"; the original error stays on c.Errors for the access
// log. TOO_MANY_REQUESTS carries Retry-After in whole seconds.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)
	e := apperr.From(err)
	status, message := apperr.Expose(e)
	kind := e.Kind
	if !kind.Expected() {
		kind = apperr.KindInternal
	}
	if kind == apperr.KindTooManyRequests && e.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(e.RetryAfter.Seconds()))))
	}
	c.AbortWithStatusJSON(status, errorBody{Code: status, Kind: kind, Message: message})
}
