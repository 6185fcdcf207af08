package store

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/mx-space/mdx-core/internal/pkg/apperr"
)

// ListAllCategories returns the names of the top-level directories under the
// content root. The default category is always included.
func (s *Store) ListAllCategories(ctx context.Context) ([]string, error) {
	entries, err := s.listDir(ctx, s.remotePath(""))
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	names := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		if e.Type == EntryDir {
			names = append(names, e.Name)
		}
	}
	if !slices.Contains(names, DefaultCategory) {
		names = append(names, DefaultCategory)
	}
	return names, nil
}

// CreateCategory writes the category marker. It reports false when the
// marker already existed.
func (s *Store) CreateCategory(ctx context.Context, name string) (bool, error) {
	name, err := validCategory(name)
	if err != nil {
		return false, err
	}
	if name == ArchivedDir {
		return false, apperr.Invalid("%q is reserved", name)
	}

	marker := s.remotePath(name + "/" + MarkerFile)
	if _, err := s.readFile(ctx, marker, true); err == nil {
		return false, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return false, err
	}

	_, err = s.remote.PutFile(ctx, marker, "", "", commitMessage("", "create category %s", name))
	s.cache.invalidate(marker)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			return false, nil
		}
		return false, classify(err)
	}
	s.logger.Info("category created", zap.String("category", name))
	return true, nil
}

// DeleteCategory removes the category marker. Documents in the category are
// left alone. It reports false when there was no marker.
func (s *Store) DeleteCategory(ctx context.Context, name string) (bool, error) {
	name, err := validCategory(name)
	if err != nil {
		return false, err
	}

	marker := s.remotePath(name + "/" + MarkerFile)
	f, err := s.readFile(ctx, marker, true)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	_, err = s.remote.DeleteFile(ctx, marker, f.SHA, commitMessage("", "delete category %s", name))
	s.cache.invalidate(marker)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, classify(err)
	}
	s.logger.Info("category deleted", zap.String("category", name))
	return true, nil
}
