package gateway

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ttlCache is a process-local, bounded-size cache with TTL expiration
// and LRU eviction on overflow. Grounded on the teacher's
// pkg/runbook/cache.go lazy-expiry map, generalized with an eviction
// list since the Gateway cache is shared across many keys/providers
// and must not grow unbounded (§4.1).
type ttlCache struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	maxItems int
}

type cacheEntry struct {
	key       string
	value     any
	expiresAt time.Time
}

func newTTLCache(maxItems int) *ttlCache {
	if maxItems <= 0 {
		maxItems = 1000
	}
	return &ttlCache{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		maxItems: maxItems,
	}
}

func (c *ttlCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.items, key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return entry.value, true
}

func (c *ttlCache) set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return // a zero/negative TTL means "do not cache" (used for LLM calls)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).value = value
		el.Value.(*cacheEntry).expiresAt = time.Now().Add(ttl)
		c.order.MoveToFront(el)
		return
	}

	entry := &cacheEntry{key: key, value: value, expiresAt: time.Now().Add(ttl)}
	el := c.order.PushFront(entry)
	c.items[key] = el

	for c.order.Len() > c.maxItems {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

// coalesced wraps a ttlCache with a singleflight group so concurrent
// lookups for the same key collapse into a single upstream call —
// stampede prevention required by §4.1.
type coalesced struct {
	cache *ttlCache
	group singleflight.Group
}

func newCoalesced(maxItems int) *coalesced {
	return &coalesced{cache: newTTLCache(maxItems)}
}

// fetch returns the cached value for key if present and unexpired;
// otherwise it calls fn exactly once across all concurrent callers for
// that key, caches the result for ttl, and returns it.
func (c *coalesced) fetch(_ context.Context, key string, ttl time.Duration, fn func() (any, error)) (any, error) {
	if v, ok := c.cache.get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.cache.get(key); ok {
			return v, nil
		}
		result, err := fn()
		if err != nil {
			return nil, err
		}
		c.cache.set(key, result, ttl)
		return result, nil
	})
	return v, err
}
