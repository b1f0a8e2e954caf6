package content

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// DefaultCachePath is where the structure cache lives unless configured.
const DefaultCachePath = ".cache/structure_cache.json"

// Cache holds the last computed Structure of every category together with
// the fingerprint of the folder it was computed from. A cached Structure is
// only reused while the fingerprint is unchanged.
//
// The cache is shared by the worker pool. Each worker only touches its own
// category key, but the maps still need the mutex.
type Cache struct {
	mu         sync.RWMutex
	structures map[string]Structure
	hashes     map[string]string
}

// cacheFile is the on-disk layout.
type cacheFile struct {
	Structure map[string]Structure `json:"structure"`
	Hashes    map[string]string    `json:"hashes"`
	Timestamp time.Time            `json:"timestamp"`
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		structures: make(map[string]Structure),
		hashes:     make(map[string]string),
	}
}

// LoadCache reads the cache file at path. A missing file yields an empty
// cache. A corrupt file yields an empty cache and an error describing it,
// so callers can warn and carry on.
func LoadCache(fsys afero.Fs, path string) (*Cache, error) {
	c := NewCache()

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, fmt.Errorf("failed to read structure cache: %w", err)
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return c, fmt.Errorf("failed to parse structure cache %s: %w", path, err)
	}

	for name, s := range file.Structure {
		c.structures[name] = s
	}
	for name, h := range file.Hashes {
		c.hashes[name] = h
	}
	return c, nil
}

// Lookup returns the cached Structure for folder if hash matches the stored
// fingerprint.
func (c *Cache) Lookup(folder, hash string) (Structure, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if hash == "" || c.hashes[folder] != hash {
		return nil, false
	}
	s, ok := c.structures[folder]
	return s, ok
}

// Store records a freshly computed Structure and its fingerprint.
func (c *Cache) Store(folder, hash string, s Structure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.structures[folder] = s
	c.hashes[folder] = hash
}

// Hash returns the stored fingerprint for folder.
func (c *Cache) Hash(folder string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hashes[folder]
}

// Len returns the number of cached folders.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.structures)
}

// Save writes the cache to path through a temporary file and a rename, so a
// crash never leaves a half-written cache behind.
func (c *Cache) Save(fsys afero.Fs, path string) error {
	c.mu.RLock()
	data, err := json.MarshalIndent(cacheFile{
		Structure: c.structures,
		Hashes:    c.hashes,
		Timestamp: time.Now(),
	}, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode structure cache: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(fsys, tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write structure cache: %w", err)
	}
	if err := fsys.Rename(tmp, path); err != nil {
		_ = fsys.Remove(tmp)
		return fmt.Errorf("failed to replace structure cache: %w", err)
	}
	return nil
}

// Fingerprint hashes the relative path and modification time of every
// non-hidden file below dir. Hidden directories are not descended into.
func Fingerprint(fsys afero.Fs, dir string) (string, error) {
	hasher := md5.New()

	err := afero.Walk(fsys, dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(hasher, "%s:%d\n", filepath.ToSlash(rel), info.ModTime().UnixNano())
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint %s: %w", dir, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
