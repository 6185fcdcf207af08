package sitemap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-space/mdx-core/internal/modules/content/store"
	"github.com/mx-space/mdx-core/internal/modules/content/store/remotetest"
)

func TestBuild(t *testing.T) {
	remote := remotetest.New()
	remote.Seed("content/notes/a.mdx", "---\nstatus: published\nupdatedAt: 2026-02-03T10:00:00Z\n---\nA")
	remote.Seed("content/notes/b.mdx", "---\nstatus: draft\n---\nB")
	st := store.New(remote, store.Options{Root: "content"})

	xml, err := build(context.Background(), st, "https://blog.example.com", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Contains(t, xml, "<loc>https://blog.example.com/</loc>")
	assert.Contains(t, xml, "<loc>https://blog.example.com/notes/a</loc>")
	assert.Contains(t, xml, "<lastmod>2026-02-03</lastmod>")
	assert.NotContains(t, xml, "notes/b")
}
