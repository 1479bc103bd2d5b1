// Package resultcache persists analysis results keyed by content digest.
//
// The durable form is one flat JSON object mapping hex digests to gain
// adjustments in dB, read completely when the cache is opened and rewritten
// completely after every new entry. Entries are write-once: storing a key that
// is already present leaves the existing value untouched. In-memory caches
// never touch the disk and back --no-db batches. Read-only caches load the
// document but keep new entries in memory, which is what dry runs use.
package resultcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"

	"normalizer/internal/contenthash"
	"normalizer/internal/logging"
	"normalizer/internal/services"
)

const stageName = "cache"

// Options controls how a cache is opened.
type Options struct {
	// InMemory skips the disk entirely.
	InMemory bool
	// ReadOnly loads the document if present but keeps new entries in
	// memory. Nothing is created on disk, not even the lock file.
	ReadOnly bool
	// RequireExisting fails Open when the cache file is missing instead of
	// starting empty.
	RequireExisting bool
	Logger          *slog.Logger
}

// Entry is one cached analysis result.
type Entry struct {
	Key   contenthash.Key
	Value float64
}

// Cache provides thread-safe access to the content-addressed result cache.
type Cache struct {
	path     string
	inMemory bool
	logger   *slog.Logger
	lock     *flock.Flock

	mu      sync.RWMutex
	entries map[contenthash.Key]float64
}

// Open loads the cache document at path. A missing file yields an empty
// cache unless RequireExisting is set; unreadable or malformed documents fail
// with services.ErrCacheIO.
func Open(path string, opts Options) (*Cache, error) {
	logger := logging.NewComponentLogger(opts.Logger, "resultcache")
	c := &Cache{
		path:     path,
		inMemory: opts.InMemory || path == "",
		logger:   logger,
		entries:  make(map[contenthash.Key]float64),
	}
	if c.inMemory {
		logger.Debug("using in-memory result cache")
		return c, nil
	}
	if !opts.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, services.Wrap(services.ErrCacheIO, stageName, "open", path, err)
		}
	}
	// Writers replace the document by rename, so reads need no lock.
	entries, err := readDocument(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !opts.RequireExisting {
			logger.Debug("cache file absent; starting empty", logging.String("path", path))
			c.inMemory = opts.ReadOnly
			return c, nil
		}
		return nil, services.Wrap(services.ErrCacheIO, stageName, "open", path, err)
	}
	c.inMemory = opts.ReadOnly
	c.entries = entries
	logger.Debug("loaded result cache",
		logging.Int("entry_count", len(entries)),
		logging.String("path", path))
	return c, nil
}

// NewMemory returns an empty cache that never persists.
func NewMemory() *Cache {
	c, _ := Open("", Options{InMemory: true})
	return c
}

// Path returns the backing document path, empty for in-memory caches.
func (c *Cache) Path() string {
	if c.inMemory {
		return ""
	}
	return c.path
}

// InMemory reports whether new entries stay in memory.
func (c *Cache) InMemory() bool {
	return c.inMemory
}

// Lookup returns the cached value for key.
func (c *Cache) Lookup(key contenthash.Key) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.entries[key]
	return value, ok
}

// Store records value for key unless the key already has a value. Durable
// caches rewrite the whole document before returning; if that fails the
// entry is discarded so memory never runs ahead of the file.
func (c *Cache) Store(key contenthash.Key, value float64) error {
	if key == "" {
		return services.Wrap(services.ErrValidation, stageName, "store", "empty key", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		return nil
	}
	if c.inMemory {
		c.entries[key] = value
		return nil
	}

	if c.lock == nil {
		c.lock = flock.New(c.path + ".lock")
	}
	if err := c.lock.Lock(); err != nil {
		return services.Wrap(services.ErrCacheIO, stageName, "lock", c.path, err)
	}
	defer func() { _ = c.lock.Unlock() }()

	// Another process may have added entries since we loaded.
	disk, err := readDocument(c.path)
	switch {
	case err == nil:
		for k, v := range disk {
			if _, ok := c.entries[k]; !ok {
				c.entries[k] = v
			}
		}
		if _, exists := c.entries[key]; exists {
			return nil
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return services.Wrap(services.ErrCacheIO, stageName, "reload", c.path, err)
	}

	c.entries[key] = value
	if err := writeDocument(c.path, c.entries); err != nil {
		delete(c.entries, key)
		return services.Wrap(services.ErrCacheIO, stageName, "persist", c.path, err)
	}

	c.logger.Debug("cached analysis result",
		logging.Key(key),
		logging.Gain(value))
	return nil
}

// Entries returns all cached results sorted by key.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, len(c.entries))
	for key, value := range c.entries {
		entries = append(entries, Entry{Key: key, Value: value})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func readDocument(path string) (map[contenthash.Key]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	entries := make(map[contenthash.Key]float64)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse cache file: %w", err)
	}
	return entries, nil
}

// writeDocument replaces path atomically via a temp file in the same directory.
func writeDocument(path string, entries map[contenthash.Key]float64) error {
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
