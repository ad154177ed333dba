package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"
)

// Cache is a content-addressed store of stage outputs shared by every task
// in a build. Reads are concurrent, at most one computation per key runs at
// a time, and writes to a key are serialized. When opened with a directory,
// entries are also persisted as msgpack files so later builds can reuse them.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
	dir     string

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	Path    string            `msgpack:"path"`
	Content []byte            `msgpack:"content"`
	Meta    map[string]string `msgpack:"meta,omitempty"`
}

func (e cacheEntry) record() Record {
	return Record{path: e.Path, content: e.Content, meta: e.Meta}
}

func entryOf(r Record) cacheEntry {
	return cacheEntry{Path: r.path, Content: r.content, Meta: r.meta}
}

// NewCache creates an in-memory cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// OpenCache creates a cache persisted under dir.
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}
	c := NewCache()
	c.dir = dir
	return c, nil
}

// CacheKey derives the key for a stage applied to rec.
func CacheKey(stage, fingerprint string, rec Record) string {
	h, _ := blake2b.New256(nil)
	for _, part := range []string{stage, fingerprint, rec.path} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(rec.content)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached record for key.
func (c *Cache) Get(key string) (Record, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return e.record(), true
	}
	if c.dir == "" {
		return Record{}, false
	}
	e, err := c.load(key)
	if err != nil {
		return Record{}, false
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return e.record(), true
}

// Put stores rec under key.
func (c *Cache) Put(key string, rec Record) error {
	e := entryOf(rec)
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	if c.dir == "" {
		return nil
	}
	return c.store(key, e)
}

// GetOrCompute returns the cached record for key, computing and storing it
// with fn on a miss. Concurrent callers for the same key share a single
// computation. hit reports whether the value came from the cache.
func (c *Cache) GetOrCompute(ctx context.Context, key string, fn func() (Record, error)) (rec Record, hit bool, err error) {
	if rec, ok := c.Get(key); ok {
		c.hits.Add(1)
		return rec, true, nil
	}
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}
	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		if rec, ok := c.Get(key); ok {
			return rec, nil
		}
		rec, err := fn()
		if err != nil {
			return Record{}, err
		}
		if err := c.Put(key, rec); err != nil {
			return Record{}, err
		}
		return rec, nil
	})
	if err != nil {
		return Record{}, false, err
	}
	if shared {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v.(Record), shared, nil
}

// Len returns the number of entries held in memory.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache) file(key string) string {
	return filepath.Join(c.dir, key[:2], key+".msgpack")
}

func (c *Cache) load(key string) (cacheEntry, error) {
	var e cacheEntry
	data, err := os.ReadFile(c.file(key))
	if err != nil {
		return e, err
	}
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return e, nil
}

func (c *Cache) store(key string, e cacheEntry) (err error) {
	data, err := msgpack.Marshal(&e)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	target := c.file(key)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".entry-*")
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("cache: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err = os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Clear drops every entry, in memory and on disk.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
	if c.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
