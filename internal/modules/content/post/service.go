package post

import (
	"context"

	"go.uber.org/zap"

	"github.com/mx-space/mdx-core/internal/modules/content/store"
	"github.com/mx-space/mdx-core/internal/modules/syndication/newsletter"
	"github.com/mx-space/mdx-core/internal/pkg/frontmatter"
)

// Publisher is told when a document is published for the first time.
type Publisher interface {
	Enqueue(ctx context.Context, in newsletter.EnqueueInput) (bool, error)
}

// Service is the document API on top of the content store.
type Service struct {
	store     *store.Store
	publisher Publisher
	logger    *zap.Logger
}

// NewService builds the service. publisher may be nil.
func NewService(st *store.Store, publisher Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, publisher: publisher, logger: logger.Named("Posts")}
}

func (s *Service) Get(ctx context.Context, path string) (*store.Document, error) {
	return s.store.GetDoc(ctx, path)
}

// List returns the documents of one category, or of every category when
// category is empty.
func (s *Service) List(ctx context.Context, category string) ([]*store.Document, error) {
	if category == "" {
		return s.store.ListDocsWithContent(ctx)
	}
	return s.store.ListDocsByCategory(ctx, category)
}

// Upsert writes a document. A write that moves the status into published
// queues the newsletter for it; a queueing failure is logged and does not
// fail the write.
func (s *Service) Upsert(ctx context.Context, dto UpsertDTO) (*store.UpsertResult, error) {
	res, err := s.store.UpsertDoc(ctx, store.UpsertInput{
		Path:    dto.Path,
		Content: dto.Content,
		Meta:    dto.Meta,
		SHA:     dto.SHA,
		NewPath: dto.NewPath,
		Message: dto.Message,
	})
	if err != nil {
		return nil, err
	}
	if s.publisher != nil && becamePublished(res.Previous, res.Meta) {
		s.announce(ctx, res)
	}
	return res, nil
}

func (s *Service) announce(ctx context.Context, res *store.UpsertResult) {
	title, _ := res.Meta.GetString(store.MetaTitle)
	summary, _ := res.Meta.GetString(store.MetaSummary)
	tags, _ := res.Meta.GetList(store.MetaTags)
	queued, err := s.publisher.Enqueue(context.WithoutCancel(ctx), newsletter.EnqueueInput{
		UID:     res.UID,
		Path:    res.Path,
		Title:   title,
		Summary: summary,
		Tags:    tags,
	})
	if err != nil {
		s.logger.Error("newsletter enqueue failed", zap.String("path", res.Path), zap.Error(err))
		return
	}
	if queued {
		s.logger.Info("newsletter queued", zap.String("path", res.Path), zap.String("uid", res.UID))
	}
}

func (s *Service) Archive(ctx context.Context, dto ArchiveDTO) (*store.MoveResult, error) {
	return s.store.ArchiveDoc(ctx, store.ArchiveInput{Path: dto.Path, ExpectedSHA: dto.SHA, Message: dto.Message})
}

func (s *Service) Unarchive(ctx context.Context, dto ArchiveDTO) (*store.MoveResult, error) {
	return s.store.UnarchiveDoc(ctx, store.ArchiveInput{Path: dto.Path, ExpectedSHA: dto.SHA, Message: dto.Message})
}

func (s *Service) Move(ctx context.Context, dto MoveDTO) (*store.MoveResult, error) {
	return s.store.MoveDoc(ctx, store.MoveInput{From: dto.From, To: dto.To, ExpectedSHA: dto.SHA, Message: dto.Message})
}

func (s *Service) Delete(ctx context.Context, q DeleteQuery) (*store.DeleteResult, error) {
	return s.store.DeleteDoc(ctx, store.DeleteInput{Path: q.Path, SHA: q.SHA, Message: q.Message})
}

func becamePublished(previous, current frontmatter.Meta) bool {
	now, _ := current.GetString(store.MetaStatus)
	if now != store.StatusPublished {
		return false
	}
	before, _ := previous.GetString(store.MetaStatus)
	return before != store.StatusPublished
}

// visible reports whether an anonymous reader may see doc.
func visible(doc *store.Document) bool {
	return doc.Status() == store.StatusPublished
}
