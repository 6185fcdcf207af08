package store

import (
	"context"
	"errors"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/frontmatter"
)

// listConcurrency bounds parallel document reads within one listing.
const listConcurrency = 4

type Options struct {
	// Root is the repository directory holding categories, e.g. "content".
	Root   string
	DirTTL time.Duration
	Logger *zap.Logger
	// Now and NewUID default to time.Now and uuid.NewString.
	Now    func() time.Time
	NewUID func() string
}

// Store implements document CRUD over a Remote.
type Store struct {
	remote Remote
	root   string
	cache  *cache
	logger *zap.Logger

	now    func() time.Time
	newUID func() string
}

func New(remote Remote, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewUID == nil {
		opts.NewUID = uuid.NewString
	}
	return &Store{
		remote: remote,
		root:   path.Clean("/" + opts.Root)[1:],
		cache:  newCache(opts.DirTTL),
		logger: logger,
		now:    opts.Now,
		newUID: opts.NewUID,
	}
}

// Root returns the configured content root.
func (s *Store) Root() string { return s.root }

// InvalidateAll drops every cached read.
func (s *Store) InvalidateAll() { s.cache.clear() }

// GetDoc reads one document. p may be given with or without the content root
// and the document extension.
func (s *Store) GetDoc(ctx context.Context, p string) (*Document, error) {
	rel, err := s.cleanRelative(p)
	if err != nil {
		return nil, err
	}
	f, err := s.readFile(ctx, s.remotePath(rel), false)
	if err != nil {
		return nil, err
	}
	return parseDocument(rel, f), nil
}

// ListDocsByCategory reads every document directly under category, in
// listing order.
func (s *Store) ListDocsByCategory(ctx context.Context, category string) ([]*Document, error) {
	category, err := validCategory(category)
	if err != nil {
		return nil, err
	}
	entries, err := s.listDir(ctx, s.remotePath(category))
	if err != nil {
		if category == DefaultCategory && errors.Is(err, apperr.ErrNotFound) {
			return []*Document{}, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.Type == EntryFile && isDocName(e.Name) {
			names = append(names, category+"/"+e.Name)
		}
	}

	docs := make([]*Document, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for i, rel := range names {
		g.Go(func() error {
			doc, err := s.GetDoc(gctx, rel)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// ListDocsWithContent reads every document of every category. Any failing
// category fails the whole call.
func (s *Store) ListDocsWithContent(ctx context.Context) ([]*Document, error) {
	categories, err := s.ListAllCategories(ctx)
	if err != nil {
		return nil, err
	}

	perCategory := make([][]*Document, len(categories))
	g, gctx := errgroup.WithContext(ctx)
	for i, cat := range categories {
		g.Go(func() error {
			docs, err := s.ListDocsByCategory(gctx, cat)
			if err != nil {
				return err
			}
			perCategory[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*Document
	for _, docs := range perCategory {
		out = append(out, docs...)
	}
	return out, nil
}

// UpsertDoc writes a document.
//
// Without SHA the document must not exist yet: an existing file yields
// CONFLICT "sha is required to update". With SHA the write only succeeds if
// it matches the current hash. When NewPath names a different location the
// document is moved there in the same call, which also requires SHA.
func (s *Store) UpsertDoc(ctx context.Context, in UpsertInput) (*UpsertResult, error) {
	rel, err := s.cleanRelative(in.Path)
	if err != nil {
		return nil, err
	}
	if categoryOf(rel) == "" {
		return nil, apperr.Invalid("path must start with a category")
	}
	remotePath := s.remotePath(rel)

	var current *File
	if in.SHA == "" {
		if _, err := s.readFile(ctx, remotePath, true); err == nil {
			return nil, apperr.Conflict("sha is required to update")
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	} else {
		current, err = s.readFile(ctx, remotePath, true)
		if err != nil {
			return nil, err
		}
		if current.SHA != in.SHA {
			return nil, apperr.Conflict("sha does not match the current version of %s", rel)
		}
	}

	var previous frontmatter.Meta
	if current != nil {
		previous, _ = frontmatter.Parse(current.Content)
	}
	given := in.Meta
	if given == nil {
		if inline, _ := frontmatter.Parse(in.Content); len(inline) > 0 {
			given = inline
		}
	}
	if bad := given.InvalidKeys(); len(bad) > 0 {
		return nil, apperr.Invalid("invalid meta key %q", bad[0])
	}
	meta := s.stampMeta(rel, given, previous)

	if in.NewPath != "" {
		target, err := s.cleanRelative(in.NewPath)
		if err != nil {
			return nil, err
		}
		if target != rel {
			if current == nil {
				return nil, apperr.Conflict("sha is required to change path")
			}
			return s.upsertMoving(ctx, rel, target, current, meta, previous, in)
		}
	}

	content := frontmatter.Apply(in.Content, meta)
	msg := commitMessage(in.Message, "update %s", rel)
	if current == nil {
		msg = commitMessage(in.Message, "create %s", rel)
	}
	res, err := s.remote.PutFile(ctx, remotePath, content, in.SHA, msg)
	s.cache.invalidate(remotePath)
	if err != nil {
		return nil, classify(err)
	}

	s.logger.Info("document written",
		zap.String("path", rel),
		zap.Bool("created", current == nil),
		zap.String("commit", res.CommitSHA),
	)
	uid, _ := meta.GetString(MetaUID)
	return &UpsertResult{
		Path:      rel,
		SHA:       res.SHA,
		CommitSHA: res.CommitSHA,
		UID:       uid,
		Created:   current == nil,
		Meta:      meta,
		Previous:  previous,
	}, nil
}

func (s *Store) upsertMoving(ctx context.Context, from, to string, current *File, meta, previous frontmatter.Meta, in UpsertInput) (*UpsertResult, error) {
	if categoryOf(to) == "" {
		return nil, apperr.Invalid("path must start with a category")
	}
	_, body := frontmatter.Parse(in.Content)
	switch {
	case !isArchived(to):
		meta[MetaOriginalCategory] = frontmatter.StringValue(categoryOf(to))
	case !isArchived(from):
		meta[MetaOriginalCategory] = frontmatter.StringValue(categoryOf(from))
	}
	res, err := s.move(ctx, from, to, current, commitMessage(in.Message, "move %s to %s", from, to),
		func(frontmatter.Meta, string) (frontmatter.Meta, string) { return meta, body })
	if err != nil {
		return nil, err
	}
	uid, _ := meta.GetString(MetaUID)
	return &UpsertResult{
		Path:      res.Path,
		SHA:       res.SHA,
		CommitSHA: res.CommitSHA,
		UID:       uid,
		Meta:      meta,
		Previous:  previous,
	}, nil
}

// stampMeta picks the meta to write and fills the fields the store owns:
// uid and createdAt survive from the previous version, updatedAt is always
// refreshed.
func (s *Store) stampMeta(rel string, given, previous frontmatter.Meta) frontmatter.Meta {
	var meta frontmatter.Meta
	switch {
	case given != nil:
		meta = given.Clone()
	case previous != nil:
		meta = previous.Clone()
	default:
		meta = frontmatter.Meta{}
	}

	if uid, _ := meta.GetString(MetaUID); uid == "" {
		switch prev, _ := previous.GetString(MetaUID); {
		case prev != "":
			meta[MetaUID] = frontmatter.StringValue(prev)
		case previous != nil:
			meta[MetaUID] = frontmatter.StringValue(derivedUID(rel))
		default:
			meta[MetaUID] = frontmatter.StringValue(s.newUID())
		}
	}

	now := s.now().UTC().Format(time.RFC3339)
	if created, _ := meta.GetString(MetaCreatedAt); created == "" {
		if prev, _ := previous.GetString(MetaCreatedAt); prev != "" {
			meta[MetaCreatedAt] = frontmatter.StringValue(prev)
		} else {
			meta[MetaCreatedAt] = frontmatter.StringValue(now)
		}
	}
	meta[MetaUpdatedAt] = frontmatter.StringValue(now)
	return meta
}

// DeleteDoc removes a document. Without SHA the current hash is read first.
func (s *Store) DeleteDoc(ctx context.Context, in DeleteInput) (*DeleteResult, error) {
	rel, err := s.cleanRelative(in.Path)
	if err != nil {
		return nil, err
	}
	remotePath := s.remotePath(rel)

	sha := in.SHA
	if sha == "" {
		f, err := s.readFile(ctx, remotePath, true)
		if err != nil {
			return nil, err
		}
		sha = f.SHA
	}

	res, err := s.remote.DeleteFile(ctx, remotePath, sha, commitMessage(in.Message, "delete %s", rel))
	s.cache.invalidate(remotePath)
	if err != nil {
		return nil, classify(err)
	}
	s.logger.Info("document deleted", zap.String("path", rel), zap.String("commit", res.CommitSHA))
	return &DeleteResult{Path: rel, Deleted: true, CommitSHA: res.CommitSHA}, nil
}

func (s *Store) readFile(ctx context.Context, remotePath string, fresh bool) (*File, error) {
	if !fresh {
		if f, ok := s.cache.file(remotePath); ok {
			return &f, nil
		}
	}
	f, err := s.remote.GetFile(ctx, remotePath)
	if err != nil {
		return nil, classify(err)
	}
	s.cache.setFile(*f)
	return f, nil
}

func (s *Store) listDir(ctx context.Context, remotePath string) ([]Entry, error) {
	if entries, ok := s.cache.dir(remotePath); ok {
		return entries, nil
	}
	entries, err := s.remote.ListDir(ctx, remotePath)
	if err != nil {
		return nil, classify(err)
	}
	s.cache.setDir(remotePath, entries)
	return entries, nil
}

func parseDocument(rel string, f *File) *Document {
	meta, body := frontmatter.Parse(f.Content)
	return &Document{
		Path:    rel,
		Content: body,
		Meta:    normalizeMeta(rel, meta),
		SHA:     f.SHA,
	}
}

// classify makes sure errors leaving the store are *apperr.Error.
func classify(err error) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return err
	}
	return apperr.Internal("store", err)
}
