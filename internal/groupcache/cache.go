// Package groupcache keeps group metadata for a few minutes so that every
// command in a busy group does not hit the network.
package groupcache

import (
	"context"
	"sync"
	"time"

	"github.com/fpt/klein-bot/internal/session"
)

const DefaultTTL = 5 * time.Minute

type entry struct {
	meta    session.GroupMetadata
	expires time.Time
}

// Cache maps group ids to metadata with a fixed time to live.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache. A non-positive ttl uses DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns unexpired metadata for id.
func (c *Cache) Get(id string) (session.GroupMetadata, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expires) {
		return session.GroupMetadata{}, false
	}
	return e.meta, true
}

func (c *Cache) Set(id string, meta session.GroupMetadata) {
	c.mu.Lock()
	c.entries[id] = entry{meta: meta, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *Cache) Delete(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// GetOrFetch returns cached metadata, calling fetch and storing its result on
// a miss. Fetch errors are not cached.
func (c *Cache) GetOrFetch(ctx context.Context, id string, fetch func(ctx context.Context, id string) (session.GroupMetadata, error)) (session.GroupMetadata, error) {
	if meta, ok := c.Get(id); ok {
		return meta, nil
	}
	meta, err := fetch(ctx, id)
	if err != nil {
		return session.GroupMetadata{}, err
	}
	c.Set(id, meta)
	return meta, nil
}

// Purge drops expired entries and returns how many were removed.
func (c *Cache) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Len counts entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
