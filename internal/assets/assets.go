// Package assets resolves texture keys to files on disk and hands out
// resource handles for them.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/modelpack/internal/logger"
	"github.com/Faultbox/modelpack/internal/model"
)

// Extensions are tried in order when a key is looked up in a root.
var Extensions = []string{".dds", ".png", ".tga", ".jpg"}

// Manager maps texture keys to files found under a set of root directories.
// It implements model.TextureResolver.
type Manager struct {
	roots []string
	cache *Cache
	paths []string // indexed by handle-1
	mu    sync.RWMutex
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		cache: NewCache(),
	}
}

// AddRoot adds a directory to search.
// Roots are searched in reverse order (last added = highest priority).
func (m *Manager) AddRoot(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("adding texture root %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("adding texture root %s: not a directory", dir)
	}

	m.mu.Lock()
	m.roots = append(m.roots, dir)
	m.mu.Unlock()
	return nil
}

// Register binds key to an explicit file, bypassing the roots.
func (m *Manager) Register(key, path string) model.SRU {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assign(key, path)
}

// RegisterDefaults binds each fallback key that no root provides to a
// placeholder, so model.BindTextures can always finish its chains.
func (m *Manager) RegisterDefaults(placeholder string) {
	for _, key := range []string{model.DefaultDiffuse, model.DefaultSpecular, model.DefaultNormal} {
		if _, ok := m.Resolve(key); !ok {
			m.Register(key, placeholder)
		}
	}
}

// Resolve implements model.TextureResolver. Handles are stable for the
// lifetime of the manager and never zero.
func (m *Manager) Resolve(key string) (model.SRU, bool) {
	if h, ok := m.cache.Get(key); ok {
		return h, true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have resolved it while we waited.
	if h, ok := m.cache.peek(key); ok {
		return h, true
	}

	for i := len(m.roots) - 1; i >= 0; i-- {
		for _, ext := range Extensions {
			path := filepath.Join(m.roots[i], filepath.FromSlash(key)+ext)
			if _, err := os.Stat(path); err == nil {
				return m.assign(key, path), true
			}
		}
	}

	logger.Named("assets").Debug("texture not found", zap.String("key", key), zap.Int("roots", len(m.roots)))
	return 0, false
}

// assign must be called with mu held.
func (m *Manager) assign(key, path string) model.SRU {
	m.paths = append(m.paths, path)
	h := model.SRU(len(m.paths))
	m.cache.Set(key, h)
	return h
}

// Path returns the file behind a handle.
func (m *Manager) Path(h model.SRU) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if h == 0 || int(h) > len(m.paths) {
		return "", false
	}
	return m.paths[h-1], true
}

// Stats returns how many lookups the cache answered and how many went to
// the roots.
func (m *Manager) Stats() (hits, misses int) {
	return m.cache.Stats()
}

// Close forgets every root and handle.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.roots = nil
	m.paths = nil
	m.cache.Clear()
}

// Cache maps resolved keys to handles.
type Cache struct {
	data map[string]model.SRU
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]model.SRU),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) (model.SRU, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return h, ok
}

// peek is Get without touching the stats.
func (c *Cache) peek(key string) (model.SRU, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.data[key]
	return h, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, h model.SRU) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = h
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]model.SRU)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
