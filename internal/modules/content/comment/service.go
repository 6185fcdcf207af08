package comment

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/pagination"
	"github.com/mx-space/mdx-core/internal/pkg/response"
)

// Service owns comment creation and the admin views. Reads of the public
// listing and all state changes go through the Cache.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *zap.Logger
	// OwnerName signs owner replies that do not carry an author.
	OwnerName string
}

func NewService(repo Repository, cache *Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, cache: cache, logger: logger.Named("CommentService"), OwnerName: "owner"}
}

func (s *Service) Cache() *Cache { return s.cache }

// Create stores a public comment. It stays pending until approved. A reply
// must target a comment of the same document.
func (s *Service) Create(ctx context.Context, in CreateInput, ip string) (*models.CommentModel, error) {
	c := &models.CommentModel{
		ArticleUID:  strings.TrimSpace(in.ArticleUID),
		ArticlePath: strings.Trim(strings.TrimSpace(in.ArticlePath), "/"),
		AuthorName:  strings.TrimSpace(in.AuthorName),
		AuthorEmail: strings.TrimSpace(in.AuthorEmail),
		Content:     strings.TrimSpace(in.Content),
		Status:      models.CommentPending,
		IP:          ip,
	}
	if c.ArticleUID == "" || c.ArticlePath == "" {
		return nil, apperr.Invalid("article_uid and article_path are required")
	}
	if err := validateBody(c.AuthorName, c.Content); err != nil {
		return nil, err
	}

	if in.ParentID != nil {
		parent, err := s.repo.Get(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.ArticleUID != c.ArticleUID {
			return nil, apperr.Invalid("parent comment belongs to another document")
		}
		c.ParentID = &parent.ID
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("comment created",
		zap.Int64("id", c.ID),
		zap.String("article", c.ArticleUID),
		zap.Bool("reply", c.ParentID != nil),
	)
	return c, nil
}

// Reply stores an owner reply to parentID. Owner replies are approved right
// away, so the document's listing is invalidated.
func (s *Service) Reply(ctx context.Context, parentID int64, in ReplyInput) (*models.CommentModel, error) {
	parent, err := s.repo.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}
	author := strings.TrimSpace(in.AuthorName)
	if author == "" {
		author = s.OwnerName
	}
	c := &models.CommentModel{
		ArticleUID:  parent.ArticleUID,
		ArticlePath: parent.ArticlePath,
		AuthorName:  author,
		Content:     strings.TrimSpace(in.Content),
		Status:      models.CommentApproved,
		ParentID:    &parent.ID,
	}
	if err := validateBody(c.AuthorName, c.Content); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.cache.InvalidateArticles(Filter{ArticleUID: c.ArticleUID, ArticlePath: c.ArticlePath})
	return c, nil
}

// Thread returns the approved comments of a document as reply trees.
func (s *Service) Thread(ctx context.Context, f Filter) (*Thread, error) {
	p, err := s.cache.ListApprovedCached(ctx, f)
	if err != nil {
		return nil, err
	}
	return &Thread{Items: buildTree(p.Items), ArchivedCount: p.ArchivedCount}, nil
}

// List is the admin listing, newest first.
func (s *Service) List(ctx context.Context, q ListQuery, page pagination.Query) ([]models.CommentModel, response.Pagination, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, response.Pagination{}, apperr.Invalid("unknown status %q", q.Status)
	}
	return s.repo.List(ctx, q, page)
}

func (s *Service) Get(ctx context.Context, id int64) (*models.CommentModel, error) {
	return s.repo.Get(ctx, id)
}

// Moderate applies action to ids and returns how many comments changed.
func (s *Service) Moderate(ctx context.Context, in ModerateInput) (int64, error) {
	var (
		n   int64
		err error
	)
	switch in.Action {
	case ActionApprove:
		n, err = s.cache.Approve(ctx, in.IDs)
	case ActionArchive:
		n, err = s.cache.Archive(ctx, in.IDs)
	case ActionUnarchive:
		n, err = s.cache.Unarchive(ctx, in.IDs)
	case ActionDelete:
		n, err = s.cache.Delete(ctx, in.IDs)
	default:
		return 0, apperr.Invalid("unknown action %q", in.Action)
	}
	if err != nil {
		return 0, err
	}
	s.logger.Info("comments moderated", zap.String("action", string(in.Action)), zap.Int64("affected", n))
	return n, nil
}

func validateBody(author, content string) error {
	switch {
	case author == "":
		return apperr.Invalid("author_name is required")
	case utf8.RuneCountInString(author) > maxAuthorLength:
		return apperr.Invalid("author_name is longer than %d characters", maxAuthorLength)
	case content == "":
		return apperr.Invalid("content is required")
	case utf8.RuneCountInString(content) > maxContentLength:
		return apperr.Invalid("content is longer than %d characters", maxContentLength)
	}
	return nil
}
