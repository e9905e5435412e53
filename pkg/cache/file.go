package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileCache stores entries on disk, one JSON file per key. Entries are
// grouped into subdirectories by the key's stage prefix (forest/, cut/,
// map/, artifact/) so the cache directory stays inspectable: `canopy cache
// path` points here and each pipeline stage can be cleared by hand.
type FileCache struct {
	dir string
}

// NewFileCache creates a file-backed cache rooted at dir, creating the
// directory if needed.
func NewFileCache(dir string) (Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

// entry is the on-disk envelope around a cached payload.
type entry struct {
	Data      []byte    `json:"data"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Get retrieves a value. Unreadable and expired entries are removed and
// reported as misses, so a corrupted cache heals itself on access.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path := c.path(key)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		_ = os.Remove(path)
		return nil, false, nil
	}
	if !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt) {
		_ = os.Remove(path)
		return nil, false, nil
	}

	return e.Data, true, nil
}

// Set stores a value. A non-positive ttl means the entry never expires.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	e := entry{
		Data:     data,
		StoredAt: time.Now(),
	}
	if ttl > 0 {
		e.ExpiresAt = e.StoredAt.Add(ttl)
	}

	encoded, err := json.Marshal(e)
	if err != nil {
		return err
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, encoded, 0644)
}

// Delete removes a value. Deleting an absent key is not an error.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	err := os.Remove(c.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Close does nothing for the file cache.
func (c *FileCache) Close() error {
	return nil
}

// path maps a cache key to <dir>/<stage>/<digest>.json, where stage is the
// key's leading prefix. Keys without a prefix land under misc/.
func (c *FileCache) path(key string) string {
	stage := "misc"
	if i := strings.Index(key, ":"); i > 0 {
		stage = key[:i]
	}
	return filepath.Join(c.dir, stage, Hash([]byte(key))+".json")
}

// Ensure FileCache implements Cache.
var _ Cache = (*FileCache)(nil)
