package comment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mx-space/mdx-core/internal/database/dbtest"
	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/pagination"
)

func newSQLService(t *testing.T) (*Service, Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	return NewService(repo, newTestCache(t, repo), zap.NewNop()), repo
}

func TestRepositoryApplyVotesIsAdditive(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	c := approved("u1", "posts/a", 3, 1)
	require.NoError(t, repo.Create(ctx, &c))

	require.NoError(t, repo.ApplyVotes(ctx, []VoteDelta{{ID: c.ID, Up: 2}}))
	require.NoError(t, repo.ApplyVotes(ctx, []VoteDelta{{ID: c.ID, Up: 1, Down: 4}}))

	v, err := repo.GetVotes(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, Votes{Upvotes: 6, Downvotes: 5}, v)

	_, err = repo.GetVotes(ctx, c.ID+100)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRepositoryListsApprovedAndCountsArchived(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	for _, status := range []models.CommentStatus{
		models.CommentApproved, models.CommentPending, models.CommentArchived,
		models.CommentArchived, models.CommentSpam, models.CommentApproved,
	} {
		c := approved("u1", "posts/a", 0, 0)
		c.Status = status
		require.NoError(t, repo.Create(ctx, &c))
	}
	other := approved("u2", "posts/b", 0, 0)
	require.NoError(t, repo.Create(ctx, &other))

	items, err := repo.ListApproved(ctx, Filter{ArticleUID: "u1"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Less(t, items[0].ID, items[1].ID)

	byPath, err := repo.ListApproved(ctx, Filter{ArticlePath: "posts/a"})
	require.NoError(t, err)
	assert.Len(t, byPath, 2)

	n, err := repo.CountArchived(ctx, Filter{ArticleUID: "u1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	spam, pag, err := repo.List(ctx, ListQuery{Status: models.CommentSpam}, pagination.Query{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Len(t, spam, 1)
	assert.EqualValues(t, 1, pag.Total)
}

func TestRepositorySetStatusHonoursSourceStates(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	a := approved("u1", "posts/a", 0, 0)
	a.Status = models.CommentPending
	b := approved("u2", "posts/b", 0, 0)
	require.NoError(t, repo.Create(ctx, &a))
	require.NoError(t, repo.Create(ctx, &b))

	n, err := repo.SetStatus(ctx, []int64{a.ID, b.ID}, []models.CommentStatus{models.CommentPending}, models.CommentApproved)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	articles, err := repo.Articles(ctx, []int64{a.ID, b.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []Filter{
		{ArticleUID: "u1", ArticlePath: "posts/a"},
		{ArticleUID: "u2", ArticlePath: "posts/b"},
	}, articles)
}

func TestRepositoryDeletePromotesReplies(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	root := approved("u1", "posts/a", 0, 0)
	require.NoError(t, repo.Create(ctx, &root))
	reply := approved("u1", "posts/a", 0, 0)
	reply.ParentID = &root.ID
	require.NoError(t, repo.Create(ctx, &reply))

	n, err := repo.Delete(ctx, []int64{root.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := repo.Get(ctx, reply.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ParentID)
}

func TestServiceCreateValidatesInput(t *testing.T) {
	svc, _ := newSQLService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{ArticleUID: "u1", AuthorName: "a", Content: "x"}, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	_, err = svc.Create(ctx, CreateInput{ArticleUID: "u1", ArticlePath: "posts/a", AuthorName: "a", Content: "   "}, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	missing := int64(404)
	_, err = svc.Create(ctx, CreateInput{
		ArticleUID: "u1", ArticlePath: "posts/a", AuthorName: "a", Content: "x", ParentID: &missing,
	}, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	other, err := svc.Create(ctx, CreateInput{ArticleUID: "u2", ArticlePath: "posts/b", AuthorName: "a", Content: "x"}, "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{
		ArticleUID: "u1", ArticlePath: "posts/a", AuthorName: "a", Content: "x", ParentID: &other.ID,
	}, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}

func TestServiceThreadShowsApprovedReplies(t *testing.T) {
	svc, _ := newSQLService(t)
	ctx := context.Background()
	in := CreateInput{ArticleUID: "u1", ArticlePath: "posts/a", AuthorName: "reader", Content: "first"}

	root, err := svc.Create(ctx, in, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, models.CommentPending, root.Status)

	thread, err := svc.Thread(ctx, Filter{ArticleUID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, thread.Items)

	_, err = svc.Moderate(ctx, ModerateInput{IDs: []int64{root.ID}, Action: ActionApprove})
	require.NoError(t, err)

	reply, err := svc.Reply(ctx, root.ID, ReplyInput{Content: "thanks"})
	require.NoError(t, err)
	assert.Equal(t, "owner", reply.AuthorName)

	in.Content = "pending reply"
	in.ParentID = &root.ID
	_, err = svc.Create(ctx, in, "")
	require.NoError(t, err)

	thread, err = svc.Thread(ctx, Filter{ArticlePath: "posts/a"})
	require.NoError(t, err)
	require.Len(t, thread.Items, 1)
	assert.Equal(t, root.ID, thread.Items[0].ID)
	require.Len(t, thread.Items[0].Replies, 1)
	assert.Equal(t, "thanks", thread.Items[0].Replies[0].Content)

	_, err = svc.Moderate(ctx, ModerateInput{IDs: []int64{root.ID}, Action: "spam"})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}

func TestVotesReachDatabaseOnFlush(t *testing.T) {
	svc, repo := newSQLService(t)
	ctx := context.Background()

	c := approved("u1", "posts/a", 0, 0)
	require.NoError(t, repo.Create(ctx, &c))

	for range 3 {
		_, err := svc.Cache().IncrementVote(ctx, c.ID, models.VoteUp)
		require.NoError(t, err)
	}
	v, err := repo.GetVotes(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, v.Upvotes)

	require.NoError(t, svc.Cache().Flush(ctx))
	v, err = repo.GetVotes(ctx, c.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, v.Upvotes)
}
