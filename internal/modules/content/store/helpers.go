package store

import (
	"fmt"
	"path"
	"strings"

	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/frontmatter"
)

// cleanRelative normalizes a caller supplied document path to a form
// relative to the content root: forward slashes, no leading slash, no root
// prefix, always ending in the document extension. Categories are a single
// level, so anything deeper than <category>/<name> is rejected.
func (s *Store) cleanRelative(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if s.root != "" {
		if p == s.root {
			p = ""
		}
		p = strings.TrimPrefix(p, s.root+"/")
	}
	if p == "" || p == "." {
		return "", apperr.Invalid("path is required")
	}
	if strings.HasPrefix(p, "..") {
		return "", apperr.Invalid("path escapes the content root")
	}
	if !strings.HasSuffix(p, DocExt) {
		p += DocExt
	}
	segments := strings.Split(p, "/")
	if len(segments) > 2 {
		return "", apperr.Invalid("path %q must be <category>/<name>%s", p, DocExt)
	}
	if len(segments) == 2 {
		if _, err := validCategory(segments[0]); err != nil {
			return "", err
		}
	}
	if name := segments[len(segments)-1]; !isDocName(name) || name == DocExt {
		return "", apperr.Invalid("invalid document name %q", name)
	}
	return p, nil
}

// remotePath prefixes a relative path with the content root.
func (s *Store) remotePath(rel string) string {
	if s.root == "" {
		return rel
	}
	if rel == "" {
		return s.root
	}
	return s.root + "/" + rel
}

// relativePath strips the content root from a repository path.
func (s *Store) relativePath(remote string) string {
	if s.root == "" {
		return remote
	}
	return strings.TrimPrefix(strings.TrimPrefix(remote, s.root), "/")
}

func validCategory(name string) (string, error) {
	name = strings.Trim(strings.TrimSpace(name), "/")
	switch {
	case name == "":
		return "", apperr.Invalid("category is required")
	case strings.ContainsAny(name, "/\\"):
		return "", apperr.Invalid("category %q must be a single segment", name)
	case name == "." || name == ".." || strings.HasPrefix(name, "."):
		return "", apperr.Invalid("invalid category %q", name)
	}
	return name, nil
}

func categoryOf(rel string) string {
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		return rel[:i]
	}
	return ""
}

func isArchived(rel string) bool {
	return categoryOf(rel) == ArchivedDir
}

func isDocName(name string) bool {
	return strings.HasSuffix(name, DocExt) && !strings.HasPrefix(name, ".")
}

// derivedUID is used for documents written before uids were stamped into
// frontmatter: the relative path without extension.
func derivedUID(rel string) string {
	return strings.TrimSuffix(rel, DocExt)
}

// normalizeMeta fills uid, status and originalCategory when absent.
func normalizeMeta(rel string, meta frontmatter.Meta) frontmatter.Meta {
	meta = meta.Clone()
	if uid, _ := meta.GetString(MetaUID); uid == "" {
		meta[MetaUID] = frontmatter.StringValue(derivedUID(rel))
	}
	if status, _ := meta.GetString(MetaStatus); status == "" {
		if isArchived(rel) {
			meta[MetaStatus] = frontmatter.StringValue(StatusArchived)
		} else {
			meta[MetaStatus] = frontmatter.StringValue(StatusDraft)
		}
	}
	if orig, _ := meta.GetString(MetaOriginalCategory); orig == "" && !isArchived(rel) {
		if cat := categoryOf(rel); cat != "" {
			meta[MetaOriginalCategory] = frontmatter.StringValue(cat)
		}
	}
	return meta
}

func commitMessage(msg, fallback string, args ...any) string {
	if strings.TrimSpace(msg) != "" {
		return msg
	}
	return fmt.Sprintf(fallback, args...)
}
