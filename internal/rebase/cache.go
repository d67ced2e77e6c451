package rebase

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Cache stores the links of pull requests in a JSON file.
// The file contains an object that maps pull request numbers to link
// strings:
//
//	{"12": ["--rebased-to #15"]}
type Cache struct {
	path string

	lock    sync.Mutex
	entries map[int][]Link
	dirty   bool
}

// LoadCache reads the cache file at path. A missing file results in an
// empty cache. If path is empty, the cache is only kept in memory.
func LoadCache(path string) (*Cache, error) {
	c := Cache{
		path:    path,
		entries: map[int][]Link{},
	}

	if path == "" {
		return &c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &c, nil
		}

		return nil, err
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing cache file %s failed: %w", path, err)
	}

	for k, links := range raw {
		nr, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("parsing cache file %s failed: invalid pull request number %q", path, k)
		}

		c.entries[nr] = ParseLinks(strings.Join(links, "\n"))
	}

	return &c, nil
}

// Get returns the cached links of a pull request.
func (c *Cache) Get(pr int) ([]Link, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	links, exists := c.entries[pr]
	return links, exists
}

func (c *Cache) Put(pr int, links []Link) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.entries[pr] = links
	c.dirty = true
}

func (c *Cache) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return len(c.entries)
}

// Save writes the cache to its file, if it was modified since it was
// loaded. The file is replaced atomically.
func (c *Cache) Save() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.path == "" || !c.dirty {
		return nil
	}

	raw := make(map[string][]string, len(c.entries))
	for nr, links := range c.entries {
		strs := make([]string, 0, len(links))
		for _, l := range links {
			strs = append(strs, l.String())
		}
		raw[strconv.Itoa(nr)] = strs
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return err
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return err
	}

	if err := os.Rename(f.Name(), c.path); err != nil {
		_ = os.Remove(f.Name())
		return err
	}

	c.dirty = false

	return nil
}
