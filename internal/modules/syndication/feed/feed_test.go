package feed

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-space/mdx-core/internal/modules/content/store"
	"github.com/mx-space/mdx-core/internal/modules/content/store/remotetest"
)

func newFeedEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	remote := remotetest.New()
	remote.Seed("content/notes/old.mdx", "---\ntitle: Old\nstatus: published\nuid: u-old\ncreatedAt: 2026-01-01T00:00:00Z\n---\nold body")
	remote.Seed("content/notes/new.mdx", "---\ntitle: New & Shiny\nstatus: published\nuid: u-new\ncreatedAt: 2026-02-01T00:00:00Z\n---\n**bold**")
	remote.Seed("content/drafts/wip.mdx", "---\ntitle: WIP\nstatus: draft\n---\nsecret")

	h := NewHandler(store.New(remote, store.Options{Root: "content"}), Site{URL: "https://blog.example.com/", Name: "Notes"}, nil)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	e := gin.New()
	h.RegisterRoutes(e.Group(""))
	return e
}

func get(e *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRSS_ListsPublishedNewestFirst(t *testing.T) {
	w := get(newFeedEngine(t), "/feed.xml")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	assert.Contains(t, w.Header().Get("Content-Type"), "rss")
	assert.Contains(t, body, "<title>New &amp; Shiny</title>")
	assert.Contains(t, body, "<link>https://blog.example.com/notes/new</link>")
	assert.Contains(t, body, "<strong>bold</strong>")
	assert.NotContains(t, body, "WIP")
	assert.Less(t, strings.Index(body, "u-new"), strings.Index(body, "u-old"))
}

func TestAtom(t *testing.T) {
	w := get(newFeedEngine(t), "/feed?type=atom")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "atom")
	assert.Contains(t, w.Body.String(), "<id>urn:uuid:u-old</id>")
}

func TestCDATA(t *testing.T) {
	assert.Equal(t, "a]]]]><![CDATA[>b", cdata("a]]>b"))
}
