package store

import (
	"context"
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/frontmatter"
)

// PartialMoveError reports a move whose new copy was written but whose old
// copy could not be deleted. The document exists at both paths until the
// old one is removed.
type PartialMoveError struct {
	From   string
	To     string
	NewSHA string
	Err    error
}

func (e *PartialMoveError) Error() string {
	return fmt.Sprintf("moved %s to %s but could not delete the old file: %v", e.From, e.To, e.Err)
}

// Unwrap exposes the failure as an internal error so handlers render it
// generically.
func (e *PartialMoveError) Unwrap() error {
	return apperr.Internal("store", e.Err)
}

type ArchiveInput struct {
	Path        string
	ExpectedSHA string
	Message     string
}

// MoveDoc moves a document to a new path, rewriting it with in.Transform
// when set. The uid is written into the frontmatter so it survives the path
// change.
func (s *Store) MoveDoc(ctx context.Context, in MoveInput) (*MoveResult, error) {
	from, err := s.cleanRelative(in.From)
	if err != nil {
		return nil, err
	}
	to, err := s.cleanRelative(in.To)
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, apperr.Invalid("source and destination are the same")
	}
	if categoryOf(to) == "" {
		return nil, apperr.Invalid("path must start with a category")
	}

	current, err := s.readCurrent(ctx, from, in.ExpectedSHA)
	if err != nil {
		return nil, err
	}
	return s.move(ctx, from, to, current, commitMessage(in.Message, "move %s to %s", from, to), in.Transform)
}

// ArchiveDoc moves a document to archived/<name> and marks it archived. The
// category it came from is kept in originalCategory.
func (s *Store) ArchiveDoc(ctx context.Context, in ArchiveInput) (*MoveResult, error) {
	from, err := s.cleanRelative(in.Path)
	if err != nil {
		return nil, err
	}
	if isArchived(from) {
		return nil, apperr.Conflict("%s is already archived", from)
	}
	current, err := s.readCurrent(ctx, from, in.ExpectedSHA)
	if err != nil {
		return nil, err
	}

	to := ArchivedDir + "/" + path.Base(from)
	category := categoryOf(from)
	return s.move(ctx, from, to, current, commitMessage(in.Message, "archive %s", from),
		func(meta frontmatter.Meta, body string) (frontmatter.Meta, string) {
			meta[MetaStatus] = frontmatter.StringValue(StatusArchived)
			if category != "" {
				meta[MetaOriginalCategory] = frontmatter.StringValue(category)
			}
			return meta, body
		})
}

// UnarchiveDoc moves an archived document back to its original category, or
// to the default category when none was recorded, and marks it a draft.
func (s *Store) UnarchiveDoc(ctx context.Context, in ArchiveInput) (*MoveResult, error) {
	from, err := s.cleanRelative(in.Path)
	if err != nil {
		return nil, err
	}
	if !isArchived(from) {
		return nil, apperr.Conflict("%s is not archived", from)
	}
	current, err := s.readCurrent(ctx, from, in.ExpectedSHA)
	if err != nil {
		return nil, err
	}

	meta, _ := frontmatter.Parse(current.Content)
	category, _ := meta.GetString(MetaOriginalCategory)
	if _, err := validCategory(category); err != nil || category == ArchivedDir {
		category = DefaultCategory
	}

	to := category + "/" + path.Base(from)
	return s.move(ctx, from, to, current, commitMessage(in.Message, "unarchive %s", from),
		func(meta frontmatter.Meta, body string) (frontmatter.Meta, string) {
			meta[MetaStatus] = frontmatter.StringValue(StatusDraft)
			meta[MetaOriginalCategory] = frontmatter.StringValue(category)
			return meta, body
		})
}

// readCurrent reads a document straight from the remote and checks it
// against an optional expected hash.
func (s *Store) readCurrent(ctx context.Context, rel, expectedSHA string) (*File, error) {
	f, err := s.readFile(ctx, s.remotePath(rel), true)
	if err != nil {
		return nil, err
	}
	if expectedSHA != "" && f.SHA != expectedSHA {
		return nil, apperr.Conflict("sha does not match the current version of %s", rel)
	}
	return f, nil
}

// move writes the new file and then deletes the old one with the hash read
// before the write. A failed write leaves everything as it was; a failed
// delete returns *PartialMoveError.
func (s *Store) move(ctx context.Context, from, to string, current *File, message string, transform func(frontmatter.Meta, string) (frontmatter.Meta, string)) (*MoveResult, error) {
	meta, body := frontmatter.Parse(current.Content)
	if uid, _ := meta.GetString(MetaUID); uid == "" {
		meta[MetaUID] = frontmatter.StringValue(derivedUID(from))
	}
	if transform != nil {
		meta, body = transform(meta, body)
	}

	fromRemote, toRemote := s.remotePath(from), s.remotePath(to)
	written, err := s.remote.PutFile(ctx, toRemote, frontmatter.Serialize(meta)+body, "", message)
	s.cache.invalidate(toRemote)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			return nil, apperr.Conflict("%s already exists", to)
		}
		return nil, classify(err)
	}

	_, err = s.remote.DeleteFile(ctx, fromRemote, current.SHA, message)
	s.cache.invalidate(fromRemote)
	if err != nil {
		s.logger.Error("move left a copy behind",
			zap.String("from", from),
			zap.String("to", to),
			zap.Error(err),
		)
		return nil, &PartialMoveError{From: from, To: to, NewSHA: written.SHA, Err: err}
	}

	s.logger.Info("document moved",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("commit", written.CommitSHA),
	)
	return &MoveResult{Path: to, SHA: written.SHA, CommitSHA: written.CommitSHA}, nil
}
