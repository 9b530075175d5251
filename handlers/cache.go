package handlers

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// safetyTTL is the backstop expiry for cached stat results. Under normal
// operation the watcher invalidates an entry long before it fires; it only
// matters when an event is missed (watch-limit exhaustion, network mounts).
const safetyTTL = 2 * time.Minute

type statEntry struct {
	info    fs.FileInfo
	err     error // only fs.ErrNotExist results are cached
	expires time.Time
}

// StatCache is a FileSystem that remembers Stat results per path. Open is
// always passed through, so a file that vanished after being cached is still
// caught when it is read.
type StatCache struct {
	fsys FileSystem
	ttl  time.Duration

	mu      sync.Mutex
	entries map[string]statEntry
}

// NewStatCache wraps fsys. A ttl of 0 selects safetyTTL.
func NewStatCache(fsys FileSystem, ttl time.Duration) *StatCache {
	if ttl <= 0 {
		ttl = safetyTTL
	}
	return &StatCache{fsys: fsys, ttl: ttl, entries: make(map[string]statEntry)}
}

// Stat returns the cached result for name, or stats it and caches the
// result. Errors other than "does not exist" are never cached.
func (c *StatCache) Stat(name string) (fs.FileInfo, error) {
	now := time.Now()

	c.mu.Lock()
	e, ok := c.entries[name]
	c.mu.Unlock()
	if ok && now.Before(e.expires) {
		return e.info, e.err
	}

	info, err := c.fsys.Stat(name)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		c.mu.Lock()
		c.entries[name] = statEntry{info: info, err: err, expires: now.Add(c.ttl)}
		c.mu.Unlock()
	}
	return info, err
}

func (c *StatCache) Open(name string) (fs.File, error) {
	return c.fsys.Open(name)
}

// Invalidate drops the entry for name and every entry beneath it, which
// covers a directory being removed or renamed as a whole.
func (c *StatCache) Invalidate(name string) {
	name = filepath.Clean(name)
	prefix := name + string(filepath.Separator)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of cached entries.
func (c *StatCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
