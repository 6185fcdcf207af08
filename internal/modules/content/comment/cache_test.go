package comment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/batchpool"
	"github.com/mx-space/mdx-core/internal/pkg/retry"
)

func newTestCache(t *testing.T, repo Repository) *Cache {
	t.Helper()
	c := NewCache(repo, CacheOptions{
		Pool: batchpool.Options{TTL: time.Hour, Retry: retry.Policy{Attempts: 2}.WithoutSleep()},
	})
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func approved(uid, path string, up, down int64) models.CommentModel {
	return models.CommentModel{
		ArticleUID:  uid,
		ArticlePath: path,
		AuthorName:  "reader",
		Content:     "hi",
		Status:      models.CommentApproved,
		Upvotes:     up,
		Downvotes:   down,
	}
}

func Test_ListApprovedCached_Rejects_When_FilterIsNotExactlyOne(t *testing.T) {
	t.Parallel()
	c := newTestCache(t, newFakeRepo())

	for _, f := range []Filter{{}, {ArticleUID: "u", ArticlePath: "posts/a"}, {ArticleUID: "  "}} {
		_, err := c.ListApprovedCached(context.Background(), f)
		require.ErrorIs(t, err, apperr.ErrInvalidRequest, "filter %+v", f)
	}
}

func Test_ListApprovedCached_ReturnsIdenticalPayload_When_CalledTwice(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	repo.seed(approved("u1", "posts/a", 1, 0))
	repo.seed(approved("u1", "posts/a", 0, 2))
	archived := approved("u1", "posts/a", 0, 0)
	archived.Status = models.CommentArchived
	repo.seed(archived)
	repo.seed(approved("u2", "posts/b", 0, 0))
	c := newTestCache(t, repo)
	ctx := context.Background()

	first, err := c.ListApprovedCached(ctx, Filter{ArticleUID: "u1"})
	require.NoError(t, err)
	second, err := c.ListApprovedCached(ctx, Filter{ArticleUID: "u1"})
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("payload changed (-first +second):\n%s", diff)
	}
	assert.Len(t, first.Items, 2)
	assert.EqualValues(t, 1, first.ArchivedCount)
	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, 1, repo.countCalls)
}

func Test_ListApprovedCached_DoesNotLeakMutations_When_CallerEditsPayload(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	repo.seed(approved("u1", "posts/a", 1, 0))
	c := newTestCache(t, repo)
	ctx := context.Background()

	p, err := c.ListApprovedCached(ctx, Filter{ArticlePath: "/posts/a/"})
	require.NoError(t, err)
	p.Items[0].Content = "edited"

	again, err := c.ListApprovedCached(ctx, Filter{ArticlePath: "posts/a"})
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Items[0].Content)
	assert.Equal(t, 1, repo.listCalls)
}

func Test_IncrementVote_ReturnsOptimisticCounts_When_CountsAreCached(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	c42 := approved("u1", "posts/a", 3, 1)
	c42.ID = 42
	repo.seed(c42)
	c := newTestCache(t, repo)
	ctx := context.Background()

	_, err := c.ListApprovedCached(ctx, Filter{ArticleUID: "u1"})
	require.NoError(t, err)

	got, err := c.IncrementVote(ctx, 42, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, Votes{Upvotes: 4, Downvotes: 1}, got)

	assert.Zero(t, repo.getVotesCalls)
	assert.Empty(t, repo.applied)
	assert.EqualValues(t, 3, repo.comment(42).Upvotes)

	p, err := c.ListApprovedCached(ctx, Filter{ArticleUID: "u1"})
	require.NoError(t, err)
	assert.EqualValues(t, 4, p.Items[0].Upvotes)
	assert.Equal(t, 1, repo.listCalls)
}

func Test_IncrementVote_PatchesEveryCachedList_When_CommentIsListedTwice(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	id := repo.seed(approved("u1", "posts/a", 0, 0))
	c := newTestCache(t, repo)
	ctx := context.Background()

	_, err := c.ListApprovedCached(ctx, Filter{ArticleUID: "u1"})
	require.NoError(t, err)
	_, err = c.ListApprovedCached(ctx, Filter{ArticlePath: "posts/a"})
	require.NoError(t, err)

	_, err = c.IncrementVote(ctx, id, models.VoteDown)
	require.NoError(t, err)

	byUID, _ := c.ListApprovedCached(ctx, Filter{ArticleUID: "u1"})
	byPath, _ := c.ListApprovedCached(ctx, Filter{ArticlePath: "posts/a"})
	assert.EqualValues(t, 1, byUID.Items[0].Downvotes)
	assert.EqualValues(t, 1, byPath.Items[0].Downvotes)
	assert.Equal(t, 2, repo.listCalls)
}

func Test_IncrementVote_ReadsRepository_When_CountsAreNotCached(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	id := repo.seed(approved("u1", "posts/a", 7, 2))
	c := newTestCache(t, repo)

	got, err := c.IncrementVote(context.Background(), id, models.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, Votes{Upvotes: 7, Downvotes: 3}, got)
	assert.Equal(t, 1, repo.getVotesCalls)

	got, err = c.IncrementVote(context.Background(), id, models.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, Votes{Upvotes: 7, Downvotes: 4}, got)
	assert.Equal(t, 1, repo.getVotesCalls)
}

func Test_IncrementVote_Fails_When_CommentIsMissingOrDirectionIsUnknown(t *testing.T) {
	t.Parallel()
	c := newTestCache(t, newFakeRepo())
	ctx := context.Background()

	_, err := c.IncrementVote(ctx, 99, models.VoteUp)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = c.IncrementVote(ctx, 99, models.VoteDirection("sideways"))
	require.ErrorIs(t, err, apperr.ErrInvalidRequest)
}

func Test_VotePool_CoalescesVotes_When_ManyVotesPrecedeFlush(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	hot := repo.seed(approved("u1", "posts/a", 0, 0))
	cold := repo.seed(approved("u1", "posts/a", 10, 0))
	c := newTestCache(t, repo)
	ctx := context.Background()

	const k, m = 5, 3
	for range k {
		_, err := c.IncrementVote(ctx, hot, models.VoteUp)
		require.NoError(t, err)
	}
	for range m {
		_, err := c.IncrementVote(ctx, hot, models.VoteDown)
		require.NoError(t, err)
	}
	_, err := c.IncrementVote(ctx, cold, models.VoteUp)
	require.NoError(t, err)

	require.Empty(t, repo.applied)
	require.NoError(t, c.Flush(ctx))

	require.Len(t, repo.applied, 1)
	assert.Equal(t, []VoteDelta{{ID: hot, Up: k, Down: m}, {ID: cold, Up: 1}}, repo.applied[0])
	assert.EqualValues(t, k, repo.comment(hot).Upvotes)
	assert.EqualValues(t, m, repo.comment(hot).Downvotes)
	assert.EqualValues(t, 11, repo.comment(cold).Upvotes)
}

func Test_VotePool_KeepsVotes_When_FlushFails(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	id := repo.seed(approved("u1", "posts/a", 0, 0))
	c := newTestCache(t, repo)
	ctx := context.Background()

	_, err := c.IncrementVote(ctx, id, models.VoteUp)
	require.NoError(t, err)

	repo.mu.Lock()
	repo.applyErr = errors.New("deadlock")
	repo.mu.Unlock()
	require.ErrorIs(t, c.Flush(ctx), apperr.ErrInternal)

	repo.mu.Lock()
	repo.applyErr = nil
	repo.mu.Unlock()
	require.NoError(t, c.Flush(ctx))
	assert.EqualValues(t, 1, repo.comment(id).Upvotes)
}

func Test_Approve_InvalidatesArticleKeys_When_PendingCommentIsApproved(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	repo.seed(approved("u1", "posts/a", 0, 0))
	pending := approved("u1", "posts/a", 0, 0)
	pending.Status = models.CommentPending
	pendingID := repo.seed(pending)
	repo.seed(approved("u2", "posts/b", 0, 0))
	c := newTestCache(t, repo)
	ctx := context.Background()

	for _, f := range []Filter{{ArticleUID: "u1"}, {ArticlePath: "posts/a"}, {ArticleUID: "u2"}} {
		_, err := c.ListApprovedCached(ctx, f)
		require.NoError(t, err)
	}

	n, err := c.Approve(ctx, []int64{pendingID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, uidCached := c.lists.Get("uid:u1")
	_, pathCached := c.lists.Get("path:posts/a")
	_, otherCached := c.lists.Get("uid:u2")
	assert.False(t, uidCached)
	assert.False(t, pathCached)
	assert.True(t, otherCached)

	p, err := c.ListApprovedCached(ctx, Filter{ArticleUID: "u1"})
	require.NoError(t, err)
	assert.Len(t, p.Items, 2)
}

func Test_Moderation_KeepsQueuedVotes_When_CommentChangesStatus(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	id := repo.seed(approved("u1", "posts/a", 5, 0))
	c := newTestCache(t, repo)
	ctx := context.Background()

	_, err := c.ListApprovedCached(ctx, Filter{ArticleUID: "u1"})
	require.NoError(t, err)
	got, err := c.IncrementVote(ctx, id, models.VoteUp)
	require.NoError(t, err)
	require.EqualValues(t, 6, got.Upvotes)

	_, err = c.Archive(ctx, []int64{id})
	require.NoError(t, err)
	_, err = c.Unarchive(ctx, []int64{id})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Pending())

	p, err := c.ListApprovedCached(ctx, Filter{ArticleUID: "u1"})
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.EqualValues(t, 6, p.Items[0].Upvotes)

	got, err = c.IncrementVote(ctx, id, models.VoteUp)
	require.NoError(t, err)
	assert.EqualValues(t, 7, got.Upvotes)

	require.NoError(t, c.Flush(ctx))
	assert.EqualValues(t, 7, repo.comment(id).Upvotes)
}

func Test_Moderation_MovesStatus_When_ActionsAreApplied(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	id := repo.seed(approved("u1", "posts/a", 0, 0))
	c := newTestCache(t, repo)
	ctx := context.Background()

	n, err := c.Archive(ctx, []int64{id, id})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	p, _ := c.ListApprovedCached(ctx, Filter{ArticleUID: "u1"})
	assert.Empty(t, p.Items)
	assert.EqualValues(t, 1, p.ArchivedCount)

	n, err = c.Approve(ctx, []int64{id})
	require.NoError(t, err)
	assert.Zero(t, n, "approve only applies to pending comments")

	_, err = c.Unarchive(ctx, []int64{id})
	require.NoError(t, err)
	p, _ = c.ListApprovedCached(ctx, Filter{ArticleUID: "u1"})
	assert.Len(t, p.Items, 1)

	_, err = c.Delete(ctx, []int64{id})
	require.NoError(t, err)
	p, _ = c.ListApprovedCached(ctx, Filter{ArticleUID: "u1"})
	assert.Empty(t, p.Items)

	_, err = c.Delete(ctx, nil)
	require.ErrorIs(t, err, apperr.ErrInvalidRequest)
}
