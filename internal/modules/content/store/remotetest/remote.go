// Package remotetest provides an in-memory store.Remote for tests.
package remotetest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mx-space/mdx-core/internal/modules/content/store"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
)

// Remote behaves like the repository contents API: every write yields a new
// blob hash and commit id, stale hashes are rejected and creating over an
// existing path without a hash fails.
type Remote struct {
	mu      sync.Mutex
	files   map[string]store.File
	version int
	commits int

	// FailDelete, when set, is consulted before each delete.
	FailDelete func(path string) error

	Gets, Lists, Puts, Deletes int
}

var _ store.Remote = (*Remote)(nil)

func New() *Remote {
	return &Remote{files: make(map[string]store.File)}
}

// Seed writes a file directly and returns its hash.
func (r *Remote) Seed(path, content string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeLocked(path, content)
}

// Content returns the raw stored content.
func (r *Remote) Content(path string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[path]
	return f.Content, ok
}

// Paths lists every stored file path, sorted.
func (r *Remote) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.files))
	for p := range r.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (r *Remote) GetFile(_ context.Context, path string) (*store.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Gets++
	f, ok := r.files[path]
	if !ok {
		return nil, apperr.NotFound("%s not found", path)
	}
	return &f, nil
}

func (r *Remote) ListDir(_ context.Context, path string) ([]store.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Lists++

	prefix := strings.TrimSuffix(path, "/") + "/"
	if path == "" {
		prefix = ""
	}
	seen := make(map[string]store.Entry)
	for p, f := range r.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		name, _, nested := strings.Cut(rest, "/")
		if nested {
			seen[name] = store.Entry{Name: name, Path: prefix + name, Type: store.EntryDir}
			continue
		}
		seen[name] = store.Entry{Name: name, Path: p, SHA: f.SHA, Type: store.EntryFile}
	}
	if len(seen) == 0 {
		return nil, apperr.NotFound("%s not found", path)
	}

	out := make([]store.Entry, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Remote) PutFile(_ context.Context, path, content, sha, _ string) (*store.WriteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Puts++

	cur, exists := r.files[path]
	switch {
	case sha == "" && exists:
		return nil, apperr.Conflict("sha wasn't supplied")
	case sha != "" && !exists:
		return nil, apperr.NotFound("%s not found", path)
	case sha != "" && cur.SHA != sha:
		return nil, apperr.Conflict("%s does not match %s", path, sha)
	}
	newSHA := r.writeLocked(path, content)
	return &store.WriteResult{SHA: newSHA, CommitSHA: r.commitLocked()}, nil
}

func (r *Remote) DeleteFile(_ context.Context, path, sha, _ string) (*store.WriteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Deletes++

	if r.FailDelete != nil {
		if err := r.FailDelete(path); err != nil {
			return nil, err
		}
	}
	cur, ok := r.files[path]
	if !ok {
		return nil, apperr.NotFound("%s not found", path)
	}
	if cur.SHA != sha {
		return nil, apperr.Conflict("%s does not match %s", path, sha)
	}
	delete(r.files, path)
	return &store.WriteResult{CommitSHA: r.commitLocked()}, nil
}

func (r *Remote) writeLocked(path, content string) string {
	r.version++
	sum := sha1.Sum([]byte(fmt.Sprintf("%s\x00%d\x00%s", path, r.version, content)))
	sha := hex.EncodeToString(sum[:])
	r.files[path] = store.File{Path: path, SHA: sha, Content: content}
	return sha
}

func (r *Remote) commitLocked() string {
	r.commits++
	return fmt.Sprintf("commit-%04d", r.commits)
}
