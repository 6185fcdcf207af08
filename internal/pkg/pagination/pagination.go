// Package pagination reads page/size query parameters and applies them to
// gorm queries.
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mx-space/mdx-core/internal/pkg/response"
)

const (
	DefaultPage = 1
	DefaultSize = 10
	MaxSize     = 100
)

type Query struct {
	Page int
	Size int
}

// FromContext reads ?page= and ?size=, clamping both into range.
func FromContext(c *gin.Context) Query {
	return Query{
		Page: atoiOr(c.Query("page"), DefaultPage),
		Size: atoiOr(c.Query("size"), DefaultSize),
	}.normalize()
}

func (q Query) normalize() Query {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	switch {
	case q.Size < 1:
		q.Size = DefaultSize
	case q.Size > MaxSize:
		q.Size = MaxSize
	}
	return q
}

func (q Query) Offset() int { return (q.Page - 1) * q.Size }

// Paginate counts the rows matched by db, then loads the requested page into
// dest. db should carry the filters and ordering but no limit.
func Paginate[T any](db *gorm.DB, q Query, dest *[]T) (response.Pagination, error) {
	q = q.normalize()

	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return response.Pagination{}, err
	}
	if err := db.Session(&gorm.Session{}).Offset(q.Offset()).Limit(q.Size).Find(dest).Error; err != nil {
		return response.Pagination{}, err
	}

	pages := int((total + int64(q.Size) - 1) / int64(q.Size))
	return response.Pagination{
		Total:       total,
		CurrentPage: q.Page,
		TotalPage:   pages,
		Size:        q.Size,
		HasNextPage: q.Page < pages,
	}, nil
}

func atoiOr(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
