package comment

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/pagination"
	"github.com/mx-space/mdx-core/internal/pkg/response"
)

// fakeRepo is an in-memory Repository that counts calls.
type fakeRepo struct {
	mu       sync.Mutex
	comments map[int64]models.CommentModel
	nextID   int64

	listCalls     int
	countCalls    int
	getVotesCalls int
	applied       [][]VoteDelta
	applyErr      error
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{comments: make(map[int64]models.CommentModel)}
}

func (r *fakeRepo) seed(c models.CommentModel) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		r.nextID++
		c.ID = r.nextID
	} else if c.ID > r.nextID {
		r.nextID = c.ID
	}
	r.comments[c.ID] = c
	return c.ID
}

func (r *fakeRepo) comment(id int64) models.CommentModel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.comments[id]
}

func (r *fakeRepo) matching(f Filter, status models.CommentStatus) []models.CommentModel {
	var out []models.CommentModel
	for _, c := range r.comments {
		if c.Status != status {
			continue
		}
		if f.ArticleUID != "" && c.ArticleUID != f.ArticleUID {
			continue
		}
		if f.ArticlePath != "" && c.ArticlePath != f.ArticlePath {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeRepo) ListApproved(_ context.Context, f Filter) ([]models.CommentModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	return r.matching(f, models.CommentApproved), nil
}

func (r *fakeRepo) CountArchived(_ context.Context, f Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countCalls++
	return int64(len(r.matching(f, models.CommentArchived))), nil
}

func (r *fakeRepo) GetVotes(_ context.Context, id int64) (Votes, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getVotesCalls++
	c, ok := r.comments[id]
	if !ok {
		return Votes{}, apperr.NotFound("comment %d not found", id)
	}
	return Votes{Upvotes: c.Upvotes, Downvotes: c.Downvotes}, nil
}

func (r *fakeRepo) ApplyVotes(_ context.Context, deltas []VoteDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.applyErr != nil {
		return r.applyErr
	}
	r.applied = append(r.applied, slices.Clone(deltas))
	for _, d := range deltas {
		c := r.comments[d.ID]
		c.Upvotes += d.Up
		c.Downvotes += d.Down
		r.comments[d.ID] = c
	}
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id int64) (*models.CommentModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, apperr.NotFound("comment %d not found", id)
	}
	return &c, nil
}

func (r *fakeRepo) Create(_ context.Context, c *models.CommentModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	r.comments[c.ID] = *c
	return nil
}

func (r *fakeRepo) List(_ context.Context, q ListQuery, page pagination.Query) ([]models.CommentModel, response.Pagination, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.matching(Filter{ArticleUID: q.ArticleUID, ArticlePath: q.ArticlePath}, q.Status)
	return out, response.Pagination{Total: int64(len(out)), CurrentPage: page.Page, Size: page.Size}, nil
}

func (r *fakeRepo) Articles(_ context.Context, ids []int64) ([]Filter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[Filter]bool{}
	var out []Filter
	for _, id := range ids {
		c, ok := r.comments[id]
		if !ok {
			continue
		}
		f := Filter{ArticleUID: c.ArticleUID, ArticlePath: c.ArticlePath}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeRepo) SetStatus(_ context.Context, ids []int64, from []models.CommentStatus, to models.CommentStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		c, ok := r.comments[id]
		if !ok || (len(from) > 0 && !slices.Contains(from, c.Status)) {
			continue
		}
		c.Status = to
		r.comments[id] = c
		n++
	}
	return n, nil
}

func (r *fakeRepo) Delete(_ context.Context, ids []int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := r.comments[id]; ok {
			delete(r.comments, id)
			n++
		}
	}
	return n, nil
}
