package comment

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/batchpool"
	"github.com/mx-space/mdx-core/internal/pkg/ttlcache"
)

const (
	DefaultListTTL  = 10 * time.Minute
	DefaultVotePool = 30 * time.Second
)

type CacheOptions struct {
	ListTTL time.Duration
	// Pool configures the vote pool. Name and TTL default to "VotePool" and
	// DefaultVotePool.
	Pool   batchpool.Options
	Logger *zap.Logger
}

// Cache serves approved listings and vote counts from memory. Votes are
// applied to the cached counts immediately and written to the repository in
// batches.
type Cache struct {
	repo   Repository
	pool   *batchpool.Pool[VoteEvent]
	logger *zap.Logger

	// mu makes each read-modify-write across lists, votes and index atomic.
	mu    sync.Mutex
	lists *ttlcache.Cache[string, Payload]
	votes *ttlcache.Cache[int64, Votes]
	// index maps a comment id to every list key it was cached under.
	index map[int64]map[string]struct{}
}

func NewCache(repo Repository, opts CacheOptions) *Cache {
	if opts.ListTTL <= 0 {
		opts.ListTTL = DefaultListTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Pool.Name == "" {
		opts.Pool.Name = "VotePool"
	}
	if opts.Pool.TTL <= 0 {
		opts.Pool.TTL = DefaultVotePool
	}
	opts.Pool.Logger = opts.Logger

	c := &Cache{
		repo:   repo,
		logger: opts.Logger.Named("CommentCache"),
		lists:  ttlcache.New[string, Payload](opts.ListTTL),
		votes:  ttlcache.New[int64, Votes](opts.ListTTL),
		index:  make(map[int64]map[string]struct{}),
	}
	c.pool = batchpool.New(c.flushVotes, opts.Pool)
	return c
}

// ListApprovedCached returns the approved comments of one document together
// with the number of archived ones. Repeated calls are served from memory
// until a moderation action touches the document.
func (c *Cache) ListApprovedCached(ctx context.Context, f Filter) (Payload, error) {
	f, err := f.normalized()
	if err != nil {
		return Payload{}, err
	}
	key := listKey(f)
	if p, ok := c.lists.Get(key); ok {
		return p.clone(), nil
	}

	var (
		rows     []models.CommentModel
		archived int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = c.repo.ListApproved(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		archived, err = c.repo.CountArchived(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return Payload{}, apperr.From(err)
	}

	p := Payload{Items: make([]View, len(rows)), ArchivedCount: archived}
	for i := range rows {
		p.Items[i] = toView(&rows[i])
	}

	c.mu.Lock()
	for i := range p.Items {
		item := &p.Items[i]
		// Votes still waiting in the pool are not in the rows yet.
		if v, ok := c.votes.Get(item.ID); ok {
			item.Upvotes = max(item.Upvotes, v.Upvotes)
			item.Downvotes = max(item.Downvotes, v.Downvotes)
		}
		c.votes.Set(item.ID, Votes{Upvotes: item.Upvotes, Downvotes: item.Downvotes})
		keys, ok := c.index[item.ID]
		if !ok {
			keys = make(map[string]struct{})
			c.index[item.ID] = keys
		}
		keys[key] = struct{}{}
	}
	c.lists.Set(key, p)
	c.mu.Unlock()

	return p.clone(), nil
}

// IncrementVote records one vote and returns the new counts. The counts are
// optimistic: the repository is updated when the vote pool flushes.
func (c *Cache) IncrementVote(ctx context.Context, id int64, dir models.VoteDirection) (Votes, error) {
	if !dir.Valid() {
		return Votes{}, apperr.Invalid("direction must be %q or %q", models.VoteUp, models.VoteDown)
	}

	base, cached := c.votes.Get(id)
	if !cached {
		v, err := c.repo.GetVotes(ctx, id)
		if err != nil {
			return Votes{}, apperr.From(err)
		}
		base = v
	}

	addErr := c.pool.Add(ctx, VoteEvent{ID: id, Direction: dir})
	if errors.Is(addErr, batchpool.ErrClosed) {
		return Votes{}, apperr.Internal("pool", addErr)
	}

	c.mu.Lock()
	if v, ok := c.votes.Get(id); ok {
		base = v
	}
	next := base.add(dir)
	c.votes.Set(id, next)
	c.patchListsLocked(id, next)
	c.mu.Unlock()

	if addErr != nil {
		return Votes{}, addErr
	}
	return next, nil
}

func (c *Cache) patchListsLocked(id int64, v Votes) {
	for key := range c.index[id] {
		found := c.lists.Update(key, func(p Payload) Payload {
			for i := range p.Items {
				if p.Items[i].ID == id {
					p.Items[i].Upvotes = v.Upvotes
					p.Items[i].Downvotes = v.Downvotes
				}
			}
			return p
		})
		if !found {
			delete(c.index[id], key)
		}
	}
	if len(c.index[id]) == 0 {
		delete(c.index, id)
	}
}

// flushVotes writes one additive update per comment for the whole batch.
func (c *Cache) flushVotes(ctx context.Context, events []VoteEvent) error {
	deltas := aggregateVotes(events)
	if err := c.repo.ApplyVotes(ctx, deltas); err != nil {
		return err
	}
	c.logger.Debug("votes flushed", zap.Int("events", len(events)), zap.Int("comments", len(deltas)))
	return nil
}

// Approve moves pending comments to approved.
func (c *Cache) Approve(ctx context.Context, ids []int64) (int64, error) {
	return c.moderate(ctx, ids, func(ids []int64) (int64, error) {
		return c.repo.SetStatus(ctx, ids, []models.CommentStatus{models.CommentPending}, models.CommentApproved)
	})
}

// Archive hides comments from the public listing. Pending comments can be
// archived directly.
func (c *Cache) Archive(ctx context.Context, ids []int64) (int64, error) {
	return c.moderate(ctx, ids, func(ids []int64) (int64, error) {
		return c.repo.SetStatus(ctx, ids,
			[]models.CommentStatus{models.CommentPending, models.CommentApproved}, models.CommentArchived)
	})
}

// Unarchive moves archived comments back to approved.
func (c *Cache) Unarchive(ctx context.Context, ids []int64) (int64, error) {
	return c.moderate(ctx, ids, func(ids []int64) (int64, error) {
		return c.repo.SetStatus(ctx, ids, []models.CommentStatus{models.CommentArchived}, models.CommentApproved)
	})
}

// Delete removes comments together with their cached counts.
func (c *Cache) Delete(ctx context.Context, ids []int64) (int64, error) {
	n, err := c.moderate(ctx, ids, func(ids []int64) (int64, error) {
		return c.repo.Delete(ctx, ids)
	})
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.votes.Delete(ids...)
	c.mu.Unlock()
	return n, nil
}

// moderate looks up the affected documents before running apply, then drops
// their listings. Cached counts of ids are kept: they may include votes the
// pool has not written yet, and a status change does not alter them.
func (c *Cache) moderate(ctx context.Context, ids []int64, apply func([]int64) (int64, error)) (int64, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, apperr.Invalid("ids is required")
	}
	articles, err := c.repo.Articles(ctx, ids)
	if err != nil {
		return 0, apperr.From(err)
	}
	n, err := apply(ids)
	if err != nil {
		return 0, apperr.From(err)
	}
	c.InvalidateArticles(articles...)
	c.unindex(ids)
	return n, nil
}

// InvalidateArticles drops the cached listings of the given documents under
// both their uid and path keys.
func (c *Cache) InvalidateArticles(articles ...Filter) {
	keys := articleKeys(articles)
	if len(keys) == 0 {
		return
	}
	c.mu.Lock()
	c.lists.Delete(keys...)
	c.mu.Unlock()
	c.logger.Debug("comment lists invalidated", zap.Strings("keys", keys))
}

func (c *Cache) unindex(ids []int64) {
	c.mu.Lock()
	for _, id := range ids {
		delete(c.index, id)
	}
	c.mu.Unlock()
}

// Flush writes queued votes now.
func (c *Cache) Flush(ctx context.Context) error { return c.pool.Flush(ctx) }

// Close flushes queued votes and rejects further ones.
func (c *Cache) Close(ctx context.Context) error { return c.pool.Close(ctx) }

// Pending reports how many votes wait for the next flush.
func (c *Cache) Pending() int { return c.pool.Len() }
