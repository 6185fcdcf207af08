package store

import (
	"path"
	"time"

	"github.com/mx-space/mdx-core/internal/pkg/ttlcache"
)

// cache keeps remote reads for a while. Keys are repository paths.
type cache struct {
	files *ttlcache.Cache[string, File]
	dirs  *ttlcache.Cache[string, []Entry]
}

func newCache(ttl time.Duration) *cache {
	if ttl <= 0 {
		ttl = DefaultDirTTL
	}
	return &cache{
		files: ttlcache.New[string, File](ttl),
		dirs:  ttlcache.New[string, []Entry](ttl),
	}
}

func (c *cache) file(p string) (File, bool) { return c.files.Get(p) }

func (c *cache) setFile(f File) { c.files.Set(f.Path, f) }

func (c *cache) dir(p string) ([]Entry, bool) {
	entries, ok := c.dirs.Get(p)
	if !ok {
		return nil, false
	}
	return append([]Entry(nil), entries...), true
}

func (c *cache) setDir(p string, entries []Entry) {
	c.dirs.Set(p, append([]Entry(nil), entries...))
}

// invalidate drops the file entry for p and the listings of every directory
// above it, so a file created in a new directory shows up in the parent
// listing too.
func (c *cache) invalidate(p string) {
	c.files.Delete(p)
	for dir := path.Dir(p); ; dir = path.Dir(dir) {
		c.dirs.Delete(dir)
		if dir == "." || dir == "/" {
			return
		}
	}
}

func (c *cache) clear() {
	c.files.Clear()
	c.dirs.Clear()
}
