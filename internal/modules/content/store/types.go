package store

import (
	"context"
	"time"

	"github.com/mx-space/mdx-core/internal/pkg/frontmatter"
)

const (
	DocExt          = ".mdx"
	ArchivedDir     = "archived"
	DefaultCategory = "drafts"
	MarkerFile      = ".keep"

	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"

	DefaultDirTTL = time.Hour
)

// Meta keys with special handling.
const (
	MetaTitle            = "title"
	MetaSummary          = "summary"
	MetaTags             = "tags"
	MetaCover            = "cover"
	MetaStatus           = "status"
	MetaUID              = "uid"
	MetaOriginalCategory = "originalCategory"
	MetaCreatedAt        = "createdAt"
	MetaUpdatedAt        = "updatedAt"
)

// EntryType tells files from directories in a listing.
type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

// Entry is one item of a remote directory listing.
type Entry struct {
	Name string
	Path string
	SHA  string
	Type EntryType
}

// File is a remote file with its decoded content.
type File struct {
	Path    string
	SHA     string
	Content string
}

// WriteResult is what the remote returns after a commit.
type WriteResult struct {
	SHA       string
	CommitSHA string
}

// Remote is the tree-structured file store documents live in. Paths are
// repository paths. All errors are *apperr.Error.
//
// PutFile with an empty sha creates the file and must fail if it already
// exists; with a sha it must fail with CONFLICT if the sha is stale.
type Remote interface {
	GetFile(ctx context.Context, path string) (*File, error)
	ListDir(ctx context.Context, path string) ([]Entry, error)
	PutFile(ctx context.Context, path, content, sha, message string) (*WriteResult, error)
	DeleteFile(ctx context.Context, path, sha, message string) (*WriteResult, error)
}

// Document is a parsed MDX file. Path is relative to the content root.
type Document struct {
	Path    string           `json:"path"`
	Content string           `json:"content"`
	Meta    frontmatter.Meta `json:"meta"`
	SHA     string           `json:"sha"`
}

// UID returns the normalized uid.
func (d *Document) UID() string {
	uid, _ := d.Meta.GetString(MetaUID)
	return uid
}

// Status returns the normalized status.
func (d *Document) Status() string {
	status, _ := d.Meta.GetString(MetaStatus)
	return status
}

// Category is the first path segment.
func (d *Document) Category() string {
	return categoryOf(d.Path)
}

type UpsertInput struct {
	Path    string
	Content string
	// Meta replaces the stored frontmatter entirely when non-nil. A nil Meta
	// keeps the current frontmatter.
	Meta frontmatter.Meta
	// SHA is the expected current hash. Empty means the document must not
	// exist yet.
	SHA string
	// NewPath moves the document when it differs from Path. Requires SHA.
	NewPath string
	Message string
}

type UpsertResult struct {
	Path      string `json:"path"`
	SHA       string `json:"newSha"`
	CommitSHA string `json:"commit"`
	UID       string `json:"uid"`
	// Created is true when the write created the document.
	Created bool `json:"created"`
	// Meta is the frontmatter that was written.
	Meta frontmatter.Meta `json:"meta"`
	// Previous holds the frontmatter that was replaced. Nil on create.
	Previous frontmatter.Meta `json:"-"`
}

type MoveInput struct {
	From string
	To   string
	// ExpectedSHA, when set, must match the current hash of From.
	ExpectedSHA string
	Message     string
	// Transform rewrites the document before it is written to To.
	Transform func(meta frontmatter.Meta, body string) (frontmatter.Meta, string)
}

type MoveResult struct {
	Path      string `json:"path"`
	SHA       string `json:"newSha"`
	CommitSHA string `json:"commit"`
}

type DeleteInput struct {
	Path    string
	SHA     string
	Message string
}

type DeleteResult struct {
	Path      string `json:"path"`
	Deleted   bool   `json:"deleted"`
	CommitSHA string `json:"commit"`
}
