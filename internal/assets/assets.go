// Package assets holds the deformer asset model and loads it from disk.
package assets

import (
	"fmt"
	"path/filepath"
	"sync"
)

// Manager loads assets from manifests and keeps the parsed result.
type Manager struct {
	cache *Cache
	mu    sync.Mutex
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{
		cache: NewCache(),
	}
}

// Load returns the asset described by the manifest at path, parsing it on
// first use.
func (m *Manager) Load(path string) (*Asset, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	// Check cache first
	if a, ok := m.cache.Get(key); ok {
		return a, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, err := LoadManifest(key)
	if err != nil {
		return nil, err
	}
	m.cache.Set(key, a)
	return a, nil
}

// Invalidate drops the cached asset for path so the next Load re-reads it.
func (m *Manager) Invalidate(path string) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = path
	}
	m.cache.Delete(key)
}

// Stats returns cache hit and miss counts.
func (m *Manager) Stats() (hits, misses int) {
	return m.cache.Stats()
}

// Close drops all cached assets.
func (m *Manager) Close() {
	m.cache.Clear()
}

// Cache is a simple in-memory cache of loaded assets keyed by manifest path.
type Cache struct {
	data map[string]*Asset
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]*Asset),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) (*Asset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return a, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, a *Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = a
}

// Delete removes an item.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*Asset)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
