package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-space/mdx-core/internal/database/dbtest"
	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/modules/content/store"
	"github.com/mx-space/mdx-core/internal/modules/content/store/remotetest"
)

type fixedPending int

func (p fixedPending) Pending() int { return int(p) }

func newStore() *store.Store {
	remote := remotetest.New()
	remote.Seed("content/notes/a.mdx", "---\nstatus: published\ntags: [go, git]\n---\nA")
	remote.Seed("content/notes/b.mdx", "---\nstatus: published\ntags: [go]\n---\nB")
	remote.Seed("content/essays/c.mdx", "---\nstatus: published\n---\nC")
	remote.Seed("content/drafts/d.mdx", "---\ntags: [secret]\n---\nD")
	return store.New(remote, store.Options{Root: "content"})
}

func TestAggregate_CountsPublishedDocuments(t *testing.T) {
	svc := NewService(newStore(), nil, "https://blog.example.com", "Notes", "")

	data, err := svc.Aggregate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, data.Count)
	assert.Equal(t, []categoryCount{{Name: "essays", Count: 1}, {Name: "notes", Count: 2}}, data.Categories)
	assert.Equal(t, []string{"git", "go"}, data.Tags)
	assert.Equal(t, "Notes", data.Site.Name)
}

func TestStat_WithoutDatabase(t *testing.T) {
	svc := NewService(newStore(), nil, "", "", "", fixedPending(2), fixedPending(3))

	data, err := svc.Stat(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{store.StatusPublished: 3, store.StatusDraft: 1}, data.Documents)
	assert.Equal(t, 5, data.PendingIO)
	assert.Nil(t, data.Comments)
	assert.Nil(t, data.Subscriber)
}

func TestStat_WithDatabase(t *testing.T) {
	db := dbtest.Open(t)
	now := time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&[]models.CommentModel{
		{ArticleUID: "u", ArticlePath: "notes/a.mdx", AuthorName: "a", Content: "x", Status: models.CommentApproved},
		{ArticleUID: "u", ArticlePath: "notes/a.mdx", AuthorName: "b", Content: "y", Status: models.CommentApproved},
		{ArticleUID: "u", ArticlePath: "notes/a.mdx", AuthorName: "c", Content: "z", Status: models.CommentPending},
	}).Error)
	require.NoError(t, db.Create(&models.SubscriberModel{Email: "a@example.com", Token: "t1", Status: models.SubscriberActive}).Error)
	require.NoError(t, db.Create(&[]models.VisitModel{
		{Path: "/a", VisitedAt: now.Add(-time.Hour)},
		{Path: "/a", VisitedAt: now.Add(-48 * time.Hour)},
	}).Error)

	svc := NewService(newStore(), db, "", "", "")
	svc.now = func() time.Time { return now }

	data, err := svc.Stat(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"approved": 2, "pending": 1}, data.Comments)
	require.NotNil(t, data.Subscriber)
	assert.EqualValues(t, 1, *data.Subscriber)
	assert.EqualValues(t, 0, *data.Newsletter)
	assert.EqualValues(t, 1, *data.TodayViews)
}
