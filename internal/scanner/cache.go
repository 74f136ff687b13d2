package scanner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// pageEntry is the cached fingerprint of one page, keyed in the
// manifest by root-relative page path (the same keys ScanResult.Hashes
// uses).
type pageEntry struct {
	Hash    string `json:"hash"`
	ModTime int64  `json:"mod_time"`
	Size    int64  `json:"size"`
}

// pageCache remembers page content hashes between scans so unchanged
// pages are not re-hashed. The manifest lives inside the docs tree's
// workspace dir and is rewritten by Flush, which also drops entries
// for pages the scan no longer saw.
type pageCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]pageEntry
	seen    map[string]bool
	dirty   bool
}

// openPageCache loads the manifest for a docs root, starting fresh
// when it is missing or unreadable.
func openPageCache(docsRoot string) *pageCache {
	c := &pageCache{
		path:    filepath.Join(docsRoot, ".docnerd", "cache", "manifest.json"),
		entries: make(map[string]pageEntry),
		seen:    make(map[string]bool),
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return c
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		// Corrupt manifest, start fresh
		c.entries = make(map[string]pageEntry)
	}
	return c
}

// Hash returns the cached hash for a page when its size and modtime
// still match.
func (c *pageCache) Hash(rel string, info os.FileInfo) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[rel]
	if !ok || entry.ModTime != info.ModTime().Unix() || entry.Size != info.Size() {
		return "", false
	}
	c.seen[rel] = true
	return entry.Hash, true
}

// Remember records a freshly computed page hash.
func (c *pageCache) Remember(rel string, info os.FileInfo, hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[rel] = pageEntry{
		Hash:    hash,
		ModTime: info.ModTime().Unix(),
		Size:    info.Size(),
	}
	c.seen[rel] = true
	c.dirty = true
}

// Flush prunes entries for pages the scan did not encounter and
// persists the manifest when anything changed.
func (c *pageCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for rel := range c.entries {
		if !c.seen[rel] {
			delete(c.entries, rel)
			c.dirty = true
		}
	}
	if !c.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return err
	}
	c.dirty = false
	return nil
}
