// CLAUDE:SUMMARY TTL key/value cache persisted as a single JSON file, with deterministic parameter-derived keys.
// Package cache is a TTL-keyed store persisted as one JSON document.
//
// The whole store is loaded at Init, swept of expired entries, and rewritten
// to disk on every mutation. It is single-process by design: cache sizes are
// bounded by tool-call volume, so full rewrites stay cheap and there is no
// concurrent-writer coordination. Deleting the file is a supported reset.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotInitialized is returned when the cache is used before Init.
var ErrNotInitialized = errors.New("cache: not initialized")

// Entry is one persisted cache record. Value keeps the caller's serialized
// form so corrupt values can be detected and dropped on read.
type Entry struct {
	Value    json.RawMessage `json:"value"`
	StoredAt int64           `json:"stored_at"` // unix milliseconds
	TTLSecs  int64           `json:"ttl_secs"`
}

func (e Entry) expired(now time.Time) bool {
	return e.StoredAt+e.TTLSecs*1000 < now.UnixMilli()
}

// Cache is the TTL store. Safe for concurrent use.
type Cache struct {
	mu          sync.Mutex
	path        string
	entries     map[string]Entry
	initialized bool
	now         func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock injects a time source. Tests use a fake clock to exercise expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache persisting to path. Call Init before use.
func New(path string, opts ...Option) *Cache {
	c := &Cache{
		path:    path,
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// DefaultPath returns the per-user cache file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cache: user config dir: %w", err)
	}
	return filepath.Join(dir, "archiviste", "cache.json"), nil
}

// Init loads the persisted store, drops already-expired entries, and writes
// the cleaned state back. A missing file starts an empty store.
func (c *Cache) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Fresh start; the file is created on first mutation.
	case err != nil:
		return fmt.Errorf("cache: read %s: %w", c.path, err)
	default:
		if err := json.Unmarshal(data, &c.entries); err != nil {
			// A corrupt store is discarded rather than failing startup.
			c.entries = make(map[string]Entry)
		}
	}

	now := c.now()
	swept := false
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			swept = true
		}
	}
	c.initialized = true

	if swept {
		return c.persistLocked()
	}
	return nil
}

// Key builds a deterministic cache key from an operation prefix and its
// parameters. Nil and empty-string values are stripped, remaining keys are
// sorted, so logically identical parameter sets collide regardless of
// insertion order.
func Key(prefix string, params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(prefix)
	for _, k := range keys {
		b.WriteByte(':')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fmt.Sprintf("%v", params[k]))
	}
	return b.String()
}

// Get unmarshals the live entry for key into out and reports whether one was
// found. Expired and undecodable entries count as absent and are deleted.
func (c *Cache) Get(key string, out any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return false, ErrNotInitialized
	}

	e, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		if err := c.persistLocked(); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := json.Unmarshal(e.Value, out); err != nil {
		// Corrupt persisted value: treat as absent and drop it.
		delete(c.entries, key)
		if perr := c.persistLocked(); perr != nil {
			return false, perr
		}
		return false, nil
	}
	return true, nil
}

// Set stores value under key with the given TTL and rewrites the store.
func (c *Cache) Set(key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal value: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return ErrNotInitialized
	}
	c.entries[key] = Entry{
		Value:    data,
		StoredAt: c.now().UnixMilli(),
		TTLSecs:  int64(ttl / time.Second),
	}
	return c.persistLocked()
}

// Delete removes key and rewrites the store.
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return ErrNotInitialized
	}
	delete(c.entries, key)
	return c.persistLocked()
}

// Clear removes every entry and rewrites the store.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return ErrNotInitialized
	}
	c.entries = make(map[string]Entry)
	return c.persistLocked()
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return 0, ErrNotInitialized
	}
	return len(c.entries), nil
}

// Path returns the backing file location.
func (c *Cache) Path() string { return c.path }

// persistLocked rewrites the whole store. Caller holds c.mu.
// Written via temp file + rename so a crash mid-write cannot truncate the store.
func (c *Cache) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("cache: mkdir: %w", err)
	}
	data, err := json.Marshal(c.entries)
	if err != nil {
		return fmt.Errorf("cache: marshal store: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cache: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("cache: rename: %w", err)
	}
	return nil
}
