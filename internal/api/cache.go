package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mr1hm/mta-alert-tracker/internal/notify"
)

type cacheEntry struct {
	value   any
	expires time.Time
}

// responseCache holds rendered read results until they expire or the next
// cycle commits. Concurrent misses for one key share a single load.
type responseCache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu         sync.RWMutex
	entries    map[string]cacheEntry
	generation uint64
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *responseCache) get(key string, load func() (any, error)) (any, error) {
	if c.ttl > 0 {
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && c.now().Before(e.expires) {
			return e.value, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		gen := c.generation
		c.mu.RUnlock()

		v, err := load()
		if err != nil || c.ttl <= 0 {
			return v, err
		}

		c.mu.Lock()
		// A cycle committed while loading; the value may predate it.
		if c.generation == gen {
			c.entries[key] = cacheEntry{value: v, expires: c.now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return v, nil
	})
	return v, err
}

func (c *responseCache) invalidate() {
	c.mu.Lock()
	c.generation++
	clear(c.entries)
	c.mu.Unlock()
}

// watch clears the cache after every completed cycle until ctx is done or
// the broadcaster closes.
func (c *responseCache) watch(ctx context.Context, b *notify.Broadcaster) {
	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-ch:
			if !ok {
				return
			}
			c.invalidate()
			slog.Debug("response cache invalidated", "cycle_id", r.ID)
		}
	}
}
