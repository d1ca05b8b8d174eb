package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"cassmem/internal/fsutil"
	"cassmem/internal/logging"
	"cassmem/internal/similarity"
)

// Cache is the file-backed bullet embedding cache, keyed by content hash so
// reworded bullets re-embed and unchanged ones don't. Loaded read-only and
// shared; writes go through the atomic writer under the cache file's lock.
type Cache struct {
	path   string
	engine Engine

	mu      sync.RWMutex
	vectors map[string][]float32

	group singleflight.Group
}

// NewCache loads the cache file (missing file = empty cache).
func NewCache(path string, engine Engine) *Cache {
	c := &Cache{path: path, engine: engine, vectors: map[string][]float32{}}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, &c.vectors); err != nil {
			logging.Get(logging.CategoryEmbedding).Warn("Corrupt embedding cache %s, starting empty: %v", path, err)
			c.vectors = map[string][]float32{}
		}
	}
	logging.EmbeddingDebug("Embedding cache loaded: %d vectors", len(c.vectors))
	return c
}

// Embed returns the vector for content, filling the cache on miss.
// Concurrent misses for the same content collapse into one engine call.
func (c *Cache) Embed(ctx context.Context, content string) ([]float32, error) {
	if c.engine == nil {
		return nil, fmt.Errorf("embedding disabled")
	}

	key := similarity.HashContent(content)
	c.mu.RLock()
	if vec, ok := c.vectors[key]; ok {
		c.mu.RUnlock()
		return vec, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		vec, embErr := c.engine.Embed(ctx, content)
		if embErr != nil {
			return nil, embErr
		}
		c.mu.Lock()
		c.vectors[key] = vec
		c.mu.Unlock()
		if saveErr := c.save(); saveErr != nil {
			logging.Get(logging.CategoryEmbedding).Warn("Could not persist embedding cache: %v", saveErr)
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// save snapshots the cache through the atomic writer under the cache file's
// own lock.
func (c *Cache) save() error {
	c.mu.RLock()
	data, err := json.Marshal(c.vectors)
	c.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return err
	}
	return fsutil.WithLock(c.path, fsutil.LockOptions{}, func() error {
		return fsutil.AtomicWrite(c.path, data)
	})
}
