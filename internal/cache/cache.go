// Package cache is the engine's bounded LRU of file artifacts and parsed
// ASTs, keyed by (absolute path, version marker). Unlike a plain sync.Map
// tiered cache, eviction here tracks true last-access recency, since the
// spec requires least-recently-used eviction, not oldest-inserted.
package cache

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	ferrors "github.com/standardbeagle/fileforge/internal/errors"
	"github.com/standardbeagle/fileforge/internal/types"
)

// Default bounds, mirroring the teacher's cache constants in shape if not
// in value — this cache holds whole file artifacts and ASTs, not metrics
// records, so the bounds are sized differently.
const (
	DefaultMaxEntries       = 2000
	DefaultMaxBytes   int64 = 256 * 1024 * 1024
	DefaultTTL              = 2 * time.Hour
	DefaultCleanupInterval  = 10 * time.Minute
)

// Kind distinguishes the three artifact shapes the cache stores.
type Kind string

const (
	KindFile    Kind = "file"
	KindAST     Kind = "ast"
	KindAnalyze Kind = "analyze"
)

// Entry is one cached artifact.
type Entry struct {
	Key        string
	Kind       Kind
	Path       string
	Version    types.VersionMarker
	Value      interface{}
	SizeBytes  int64
	LastAccess int64 // unix nano, atomic-style field guarded by Cache.mu
	InsertedAt int64
}

// Loader produces the value for a cache miss. It is supplied by the caller
// (File Service for KindFile, AST Facade for KindAST) so this package has
// no dependency on either.
type Loader func() (value interface{}, size int64, version types.VersionMarker, err error)

// Cache is the bounded LRU with load coalescing.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	bytes      int64
	maxBytes   int64
	maxEntries int
	ttl        time.Duration

	group singleflight.Group

	hits, misses, evictions int64
}

// Config tunes a Cache; zero fields take the package defaults.
type Config struct {
	MaxEntries int
	MaxBytes   int64
	TTL        time.Duration
}

// New builds a Cache from Config, substituting defaults for zero fields.
func New(cfg Config) *Cache {
	maxEntries := cfg.MaxEntries
	if maxEntries == 0 {
		maxEntries = DefaultMaxEntries
	}
	maxBytes := cfg.MaxBytes
	if maxBytes == 0 {
		maxBytes = DefaultMaxBytes
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries:    make(map[string]*Entry),
		maxBytes:   maxBytes,
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Key builds the cache key for (kind, path, version). The hash need not be
// cryptographic — xxhash is chosen purely for speed, exactly as the teacher
// chooses it for its own cache keys.
func Key(kind Kind, path string, version types.VersionMarker) string {
	h := xxhash.New()
	h.WriteString(string(kind))
	h.WriteString(":")
	h.WriteString(path)
	h.WriteString(":")
	h.WriteString(version.ModTime.String())
	h.WriteString(":")
	h.WriteString(strconv.FormatInt(version.Size, 10))
	return string(kind) + ":" + path + "#" + strconv.FormatUint(h.Sum64(), 16)
}

// Get returns the cached value for key if present and its version still
// matches current. If the version disagrees (the file changed underneath
// the cache) the entry is evicted as stale. On a miss, load is invoked —
// concurrent callers for the same key share a single in-flight load via
// singleflight, satisfying the no-duplicate-load invariant.
func (c *Cache) Get(key, path string, kind Kind, current types.VersionMarker, load Loader) (interface{}, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if e.Version.Equal(current) && !c.expired(e) {
			e.LastAccess = time.Now().UnixNano()
			c.hits++
			c.mu.Unlock()
			return e.Value, nil
		}
		// stale or expired: drop it, fall through to a fresh load
		c.removeLocked(key)
	}
	c.misses++
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		value, size, version, err := load()
		if err != nil {
			return nil, err
		}
		c.Put(key, path, kind, version, value, size)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Put inserts or replaces an entry, then evicts least-recently-used
// entries until both bounds are satisfied.
func (c *Cache) Put(key, path string, kind Kind, version types.VersionMarker, value interface{}, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixNano()
	if old, ok := c.entries[key]; ok {
		c.bytes -= old.SizeBytes
	}
	c.entries[key] = &Entry{
		Key:        key,
		Kind:       kind,
		Path:       path,
		Version:    version,
		Value:      value,
		SizeBytes:  size,
		LastAccess: now,
		InsertedAt: now,
	}
	c.bytes += size

	for (c.bytes > c.maxBytes || len(c.entries) > c.maxEntries) && len(c.entries) > 0 {
		c.evictLRULocked()
	}
}

// evictLRULocked removes the entry with the oldest LastAccess. Callers
// must hold c.mu.
func (c *Cache) evictLRULocked() {
	var oldestKey string
	var oldestAccess int64
	first := true
	for k, e := range c.entries {
		if first || e.LastAccess < oldestAccess {
			oldestKey = k
			oldestAccess = e.LastAccess
			first = false
		}
	}
	if oldestKey != "" {
		c.removeLocked(oldestKey)
		c.evictions++
	}
}

func (c *Cache) removeLocked(key string) {
	if e, ok := c.entries[key]; ok {
		c.bytes -= e.SizeBytes
		delete(c.entries, key)
	}
}

func (c *Cache) expired(e *Entry) bool {
	if c.ttl <= 0 {
		return false
	}
	return time.Since(time.Unix(0, e.InsertedAt)) > c.ttl
}

// Invalidate drops a single key, e.g. on an fsnotify write event.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	c.removeLocked(key)
	c.mu.Unlock()
}

// InvalidatePath drops every entry (file and ast) for a given path,
// regardless of the version encoded in its key.
func (c *Cache) InvalidatePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.Path == path {
			c.removeLocked(k)
		}
	}
}

// Clear empties the cache entirely.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.bytes = 0
	c.mu.Unlock()
}

// CleanExpired purges every entry past its TTL and returns the count
// removed; intended to run off a periodic ticker.
func (c *Cache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if c.expired(e) {
			c.removeLocked(k)
			removed++
		}
	}
	return removed
}

// Stats reports the current bounds usage and hit/miss counters for the
// performance section of a Response.
func (c *Cache) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return types.CacheStats{
		Hits:    c.hits,
		Misses:  c.misses,
		Bytes:   c.bytes,
		Entries: len(c.entries),
	}
}

// CheckInvariants verifies the bounded-LRU invariants of spec.md §8; it
// exists for tests, not production use.
func (c *Cache) CheckInvariants() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bytes > c.maxBytes {
		return ferrors.New(ferrors.Internal, "invariant", fmt.Errorf("cache bytes %d exceed max %d", c.bytes, c.maxBytes))
	}
	if len(c.entries) > c.maxEntries {
		return ferrors.New(ferrors.Internal, "invariant", fmt.Errorf("cache entries %d exceed max %d", len(c.entries), c.maxEntries))
	}
	for _, e := range c.entries {
		if c.expired(e) {
			return ferrors.New(ferrors.Internal, "invariant", fmt.Errorf("entry %s outlived TTL", e.Key))
		}
	}
	return nil
}

