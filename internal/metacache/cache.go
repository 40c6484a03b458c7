package metacache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"vinobench/internal/logging"
)

// Kind tags a cache key so wine and vintage identifiers never collide.
type Kind string

const (
	KindWine    Kind = "wine"
	KindVintage Kind = "vintage"
)

// Key identifies a cached metadata record.
type Key struct {
	Kind Kind
	ID   string
}

// String renders the persisted "<kind>:<id>" form of the key.
func (k Key) String() string {
	return string(k.Kind) + ":" + k.ID
}

// ParseKey parses the persisted "<kind>:<id>" form.
func ParseKey(s string) (Key, error) {
	kind, id, found := strings.Cut(s, ":")
	if !found || id == "" {
		return Key{}, fmt.Errorf("metacache: malformed key %q", s)
	}
	switch Kind(kind) {
	case KindWine, KindVintage:
		return Key{Kind: Kind(kind), ID: id}, nil
	default:
		return Key{}, fmt.Errorf("metacache: unknown key kind %q", kind)
	}
}

// Record holds the descriptive attributes resolved for a wine or vintage.
// Fields are empty strings when the lookup did not provide them.
type Record struct {
	WineID        string `json:"wine_id,omitempty"`
	WineName      string `json:"wine_name,omitempty"`
	WineryID      string `json:"winery_id,omitempty"`
	WineryName    string `json:"winery_name,omitempty"`
	Region        string `json:"region,omitempty"`
	Year          string `json:"year,omitempty"`
	ImageLocation string `json:"image_location,omitempty"`
}

// Cache is a concurrency-safe store of metadata records keyed by tagged
// identifier. It is pure storage: misses are resolved by the caller, which
// then Puts the result. Entries load eagerly at construction and persist
// only on Flush, so a run performs at most one read and one write of the
// backing file.
type Cache struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[Key]Record
	dirty   bool
}

// New creates a cache backed by the JSON file at path. An empty path yields
// a purely in-memory cache. A missing or unreadable file is not fatal: the
// cache starts empty and the run proceeds with extra lookups.
func New(path string, logger *slog.Logger) *Cache {
	logger = logging.NewComponentLogger(logger, "metacache")

	c := &Cache{
		path:    path,
		logger:  logger,
		entries: make(map[Key]Record),
	}

	if path == "" {
		return c
	}

	if err := c.load(); err != nil {
		logger.Warn("failed to load metadata cache",
			logging.String(logging.FieldEventType, "metacache_load_failed"),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run will repeat lookups for previously cached ids"))
	}

	return c
}

// Get returns the cached record for key if present.
func (c *Cache) Get(key Key) (Record, bool) {
	if key.ID == "" {
		return Record{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	record, found := c.entries[key]
	return record, found
}

// Put stores a record in memory. The last writer for a key wins; records
// are immutable facts about a fixed id, so overwrites are harmless.
func (c *Cache) Put(key Key, record Record) {
	if key.ID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = record
	c.dirty = true
}

// Remove deletes an entry. Used by cache management commands only.
func (c *Cache) Remove(key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		return fmt.Errorf("metacache: key %q not found", key.String())
	}
	delete(c.entries, key)
	c.dirty = true
	return nil
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Key]Record)
	c.dirty = true
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Entry pairs a key with its record for listing.
type Entry struct {
	Key    Key
	Record Record
}

// List returns all entries sorted by key string.
func (c *Cache) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]Entry, 0, len(c.entries))
	for key, record := range c.entries {
		entries = append(entries, Entry{Key: key, Record: record})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key.String() < entries[j].Key.String()
	})
	return entries
}

// Flush writes the cache to disk if anything changed since load. The write
// is atomic (temp file + rename) and guarded by a file lock so concurrent
// benchmark runs sharing a cache file do not interleave writes.
func (c *Cache) Flush() error {
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	lock := flock.New(c.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock cache file: %w", err)
	}
	defer lock.Unlock()

	persisted := make(map[string]Record, len(c.entries))
	for key, record := range c.entries {
		persisted[key.String()] = record
	}

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	c.dirty = false
	c.logger.Debug("flushed metadata cache",
		logging.Int("entry_count", len(c.entries)),
		logging.String("path", c.path))
	return nil
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // fresh start
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var persisted map[string]Record
	if err := json.Unmarshal(data, &persisted); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}

	c.entries = make(map[Key]Record, len(persisted))
	for raw, record := range persisted {
		key, err := ParseKey(raw)
		if err != nil {
			c.logger.Warn("skipping malformed cache key",
				logging.String(logging.FieldEventType, "metacache_bad_key"),
				logging.String("key", raw))
			continue
		}
		c.entries[key] = record
	}

	c.logger.Debug("loaded metadata cache",
		logging.Int("entry_count", len(c.entries)),
		logging.String("path", c.path))
	return nil
}
