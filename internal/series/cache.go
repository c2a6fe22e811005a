package series

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"lpbacktest/internal/feegrowth"
)

// Cache memoizes timestamp to block and block to globals lookups. It is owned
// by the caller and may be shared across runs through Load and Save.
type Cache struct {
	mu      sync.RWMutex
	blocks  map[int64]uint64
	globals map[uint64]feegrowth.Growth
}

func NewCache() *Cache {
	return &Cache{
		blocks:  make(map[int64]uint64),
		globals: make(map[uint64]feegrowth.Growth),
	}
}

func (c *Cache) Block(ts int64) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.blocks[ts]
	return b, ok
}

func (c *Cache) SetBlock(ts int64, block uint64) {
	c.mu.Lock()
	c.blocks[ts] = block
	c.mu.Unlock()
}

func (c *Cache) Globals(block uint64) (feegrowth.Growth, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.globals[block]
	return g, ok
}

func (c *Cache) SetGlobals(block uint64, g feegrowth.Growth) {
	c.mu.Lock()
	c.globals[block] = g
	c.mu.Unlock()
}

// Len returns the number of cached blocks and globals.
func (c *Cache) Len() (int, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks), len(c.globals)
}

type cacheFile struct {
	Blocks  map[string]uint64           `json:"blocks"`
	Globals map[string]feegrowth.Growth `json:"globals"`
}

// LoadCache reads a cache file. A missing file yields an empty cache.
func LoadCache(path string) (*Cache, error) {
	c := NewCache()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read cache: %w", err)
	}
	if len(data) == 0 {
		return c, nil
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse cache: %w", err)
	}
	for k, v := range file.Blocks {
		ts, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cache timestamp %q: %w", k, err)
		}
		c.blocks[ts] = v
	}
	for k, v := range file.Globals {
		block, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cache block %q: %w", k, err)
		}
		if v.Token0 == nil || v.Token1 == nil {
			continue
		}
		c.globals[block] = v
	}
	return c, nil
}

// Save writes the cache atomically.
func (c *Cache) Save(path string) error {
	if path == "" {
		return nil
	}

	c.mu.RLock()
	file := cacheFile{
		Blocks:  make(map[string]uint64, len(c.blocks)),
		Globals: make(map[string]feegrowth.Growth, len(c.globals)),
	}
	for ts, b := range c.blocks {
		file.Blocks[strconv.FormatInt(ts, 10)] = b
	}
	for b, g := range c.globals {
		file.Globals[strconv.FormatUint(b, 10)] = g
	}
	c.mu.RUnlock()

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename cache: %w", err)
	}
	return nil
}
