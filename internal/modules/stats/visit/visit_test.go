package visit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-space/mdx-core/internal/database/dbtest"
	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/pkg/batchpool"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"

func newTestRecorder(t *testing.T, threshold int) (*Recorder, func() int64) {
	t.Helper()
	db := dbtest.Open(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRecorder(db, Options{
		Pool: batchpool.Options{Threshold: threshold, TTL: time.Hour},
		Salt: "salt",
		Now:  func() time.Time { return now },
	})
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	count := func() int64 {
		var n int64
		require.NoError(t, db.Model(&models.VisitModel{}).Count(&n).Error)
		return n
	}
	return r, count
}

func Test_Record_BuffersVisits_When_BelowThreshold(t *testing.T) {
	r, count := newTestRecorder(t, 3)
	ctx := context.Background()

	require.NoError(t, r.Record(ctx, Hit{Path: "/posts/hello.mdx"}, "1.2.3.4", browserUA))
	require.NoError(t, r.Record(ctx, Hit{Path: "posts/hello/"}, "1.2.3.4", browserUA))
	assert.Equal(t, 2, r.Pending())
	assert.Zero(t, count())

	require.NoError(t, r.Record(ctx, Hit{Path: "/posts/other"}, "5.6.7.8", browserUA))
	assert.Equal(t, 0, r.Pending())
	assert.EqualValues(t, 3, count())
}

func Test_Record_Rejects_When_PathIsEmpty(t *testing.T) {
	r, _ := newTestRecorder(t, 10)
	err := r.Record(context.Background(), Hit{Path: " / "}, "1.2.3.4", browserUA)
	require.Error(t, err)
	assert.Equal(t, 0, r.Pending())
}

func Test_Summary_CountsViewsAndVisitors_When_Flushed(t *testing.T) {
	r, _ := newTestRecorder(t, 100)
	ctx := context.Background()
	for _, ip := range []string{"1.1.1.1", "1.1.1.1", "2.2.2.2"} {
		require.NoError(t, r.Record(ctx, Hit{Path: "/posts/a", ArticleUID: "uid-a"}, ip, browserUA))
	}
	require.NoError(t, r.Record(ctx, Hit{Path: "/posts/b"}, "3.3.3.3", browserUA))
	require.NoError(t, r.Flush(ctx))

	rows, err := r.Summary(ctx, SummaryQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, PathCount{Path: "/posts/a", Views: 3, Visitors: 2, Article: "uid-a"}, rows[0])
	assert.Equal(t, "/posts/b", rows[1].Path)
	assert.EqualValues(t, 1, rows[1].Views)

	later := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	rows, err = r.Summary(ctx, SummaryQuery{From: &later})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func Test_HashIP_IsStableAndSalted(t *testing.T) {
	r, _ := newTestRecorder(t, 10)
	h := r.hashIP("1.2.3.4")
	assert.Len(t, h, 64)
	assert.Equal(t, h, r.hashIP(" 1.2.3.4 "))
	assert.NotEqual(t, h, r.hashIP("1.2.3.5"))
	assert.Empty(t, r.hashIP(""))
}

func Test_Middleware_RecordsAnonymousReads(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r, _ := newTestRecorder(t, 100)

	engine := gin.New()
	engine.Use(Middleware(r, "/api/posts"))
	engine.GET("/api/posts/:category/:slug", func(c *gin.Context) {
		c.Set(ArticleUIDKey, "uid-1")
		c.Status(http.StatusOK)
	})
	engine.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(path, ua, auth string) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("User-Agent", ua)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		engine.ServeHTTP(httptest.NewRecorder(), req)
	}

	do("/api/posts/notes/hello", browserUA, "")
	do("/api/posts/notes/hello", "Googlebot/2.1", "")
	do("/api/posts/notes/hello", browserUA, "Bearer x")
	do("/api/health", browserUA, "")
	do("/api/posts/notes/missing-route/extra", browserUA, "")

	require.Equal(t, 1, r.Pending())
	require.NoError(t, r.Flush(context.Background()))
	rows, err := r.Summary(context.Background(), SummaryQuery{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "/notes/hello", rows[0].Path)
	assert.Equal(t, "uid-1", rows[0].Article)
}

func Test_Handler_IgnoresBots(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r, _ := newTestRecorder(t, 100)
	engine := gin.New()
	NewHandler(r).RegisterRoutes(engine.Group("/api"), func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) })

	post := func(ua string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/visits", strings.NewReader(`{"path":"/notes/a"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", ua)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, post("curl/8.0"))
	assert.Equal(t, 0, r.Pending())
	assert.Equal(t, http.StatusNoContent, post(browserUA))
	assert.Equal(t, 1, r.Pending())
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/notes/a.mdx":   "/notes/a",
		"notes/a/":       "/notes/a",
		"/notes/a?x=1#y": "/notes/a",
		"/":              "",
		"":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizePath(in), in)
	}
}

func Test_Prune_RemovesOldVisits(t *testing.T) {
	r, count := newTestRecorder(t, 100)
	ctx := context.Background()
	require.NoError(t, r.Record(ctx, Hit{Path: "/a"}, "1.1.1.1", browserUA))
	require.NoError(t, r.Flush(ctx))

	n, err := r.Prune(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = r.Prune(ctx, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Zero(t, count())
}
