// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package workspace

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Cache limits.
const (
	DefaultCacheEntries = 64
	DefaultCacheBytes   = 32 * 1024 * 1024
)

// =============================================================================
// NOTE CACHE
// =============================================================================

// NoteCache keeps recently read note contents so every turn does not re-read
// every open note. An entry is dropped as soon as the file's modification
// time moves past the cached one.
type NoteCache struct {
	mu          sync.Mutex
	entries     map[string]*cacheEntry
	order       []string // least recently used first
	maxEntries  int
	maxBytes    int64
	currentSize int64

	hits   int
	misses int
}

type cacheEntry struct {
	content string
	modTime time.Time
	size    int64
}

// CacheStats holds cache statistics.
type CacheStats struct {
	Hits    int
	Misses  int
	Entries int
	Bytes   int64
}

// NewNoteCache creates a cache bounded by entry count and total bytes.
func NewNoteCache(maxEntries int, maxBytes int64) *NoteCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	if maxBytes <= 0 {
		maxBytes = DefaultCacheBytes
	}
	return &NoteCache{
		entries:    make(map[string]*cacheEntry),
		order:      make([]string, 0, maxEntries),
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
	}
}

// Read returns the note's content, from the cache when the file is unchanged.
func (c *NoteCache) Read(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		c.Invalidate(path)
		return "", errors.Wrapf(err, "stat %s", path)
	}
	if content, ok := c.lookup(path, info.ModTime()); ok {
		return content, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", path)
	}
	content := string(data)
	c.put(path, content, info.ModTime())
	return content, nil
}

// Invalidate drops a cached note.
func (c *NoteCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(path)
}

// Clear drops every cached note.
func (c *NoteCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.currentSize = 0
}

// Stats returns cache statistics.
func (c *NoteCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Hits:    c.hits,
		Misses:  c.misses,
		Entries: len(c.entries),
		Bytes:   c.currentSize,
	}
}

func (c *NoteCache) lookup(path string, modTime time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok {
		c.misses++
		return "", false
	}
	if !modTime.Equal(entry.modTime) {
		c.removeLocked(path)
		c.misses++
		return "", false
	}
	c.touchLocked(path)
	c.hits++
	return entry.content, true
}

func (c *NoteCache) put(path, content string, modTime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := int64(len(content))
	if size > c.maxBytes {
		return
	}
	c.removeLocked(path)
	for len(c.order) > 0 && (c.currentSize+size > c.maxBytes || len(c.entries) >= c.maxEntries) {
		c.removeLocked(c.order[0])
	}

	c.entries[path] = &cacheEntry{content: content, modTime: modTime, size: size}
	c.currentSize += size
	c.order = append(c.order, path)
}

// removeLocked removes an entry (must hold lock).
func (c *NoteCache) removeLocked(path string) {
	entry, ok := c.entries[path]
	if !ok {
		return
	}
	c.currentSize -= entry.size
	delete(c.entries, path)
	c.dropOrderLocked(path)
}

// touchLocked marks path as most recently used (must hold lock).
func (c *NoteCache) touchLocked(path string) {
	c.dropOrderLocked(path)
	c.order = append(c.order, path)
}

func (c *NoteCache) dropOrderLocked(path string) {
	for i, p := range c.order {
		if p == path {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
