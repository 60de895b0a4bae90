package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryCache is an LRU backend with a TTL and a stale window.
type MemoryCache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	staleTTL   time.Duration
	ll         *list.List
	items      map[string]*list.Element
	onEvict    func(key string)
	now        func() time.Time
}

type cacheItem struct {
	key     string
	value   Entry
	staleAt time.Time // zero: never stale
}

func NewMemoryCache(maxEntries int, ttl, staleTTL time.Duration) *MemoryCache {
	if maxEntries < 0 {
		maxEntries = 0
	}
	if staleTTL < 0 {
		staleTTL = 0
	}
	return &MemoryCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		staleTTL:   staleTTL,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		now:        time.Now,
	}
}

// SetEvictHook installs fn to be called with every key dropped for capacity.
func (c *MemoryCache) SetEvictHook(fn func(key string)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

func (c *MemoryCache) Get(_ context.Context, key string) (Entry, State, error) {
	entry, state := c.get(key, true)
	return entry, state, nil
}

func (c *MemoryCache) Peek(_ context.Context, key string) (Entry, State, error) {
	entry, state := c.get(key, false)
	return entry, state, nil
}

func (c *MemoryCache) get(key string, touch bool) (Entry, State) {
	if c == nil || c.maxEntries <= 0 {
		return Entry{}, StateMissing
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return Entry{}, StateMissing
	}
	item := el.Value.(*cacheItem)
	state := c.stateOf(item)
	if state == StateMissing {
		c.removeElement(el)
		return Entry{}, StateMissing
	}
	if touch {
		c.ll.MoveToFront(el)
	}
	return item.value, state
}

func (c *MemoryCache) stateOf(item *cacheItem) State {
	if item.staleAt.IsZero() {
		return StateFresh
	}
	now := c.now()
	if now.Before(item.staleAt) {
		return StateFresh
	}
	if now.Before(item.staleAt.Add(c.staleTTL)) {
		return StateStale
	}
	return StateMissing
}

func (c *MemoryCache) Put(_ context.Context, key string, entry Entry) (bool, error) {
	if c == nil || c.maxEntries <= 0 {
		return false, nil
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = c.now()
	}

	var evicted []string
	c.mu.Lock()
	replaced := false
	if el, ok := c.items[key]; ok {
		item := el.Value.(*cacheItem)
		replaced = c.stateOf(item) != StateMissing
		item.value = entry
		item.staleAt = c.staleTime()
		c.ll.MoveToFront(el)
	} else {
		item := &cacheItem{
			key:     key,
			value:   entry,
			staleAt: c.staleTime(),
		}
		c.items[key] = c.ll.PushFront(item)
		for c.ll.Len() > c.maxEntries {
			evicted = append(evicted, c.removeOldest())
		}
	}
	hook := c.onEvict
	c.mu.Unlock()

	if hook != nil {
		for _, k := range evicted {
			hook(k)
		}
	}
	return replaced, nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false, nil
	}
	expired := c.stateOf(el.Value.(*cacheItem)) == StateMissing
	c.removeElement(el)
	return !expired, nil
}

// MarkStale moves the entry's stale point to now.
func (c *MemoryCache) MarkStale(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false, nil
	}
	item := el.Value.(*cacheItem)
	if c.stateOf(item) == StateMissing {
		c.removeElement(el)
		return false, nil
	}
	now := c.now()
	if item.staleAt.IsZero() || item.staleAt.After(now) {
		item.staleAt = now
	}
	return true, nil
}

// Keys lists keys from most to least recently used.
func (c *MemoryCache) Keys(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.ll.Len())
	for el := c.ll.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*cacheItem).key)
	}
	return keys, nil
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *MemoryCache) Size(context.Context) (int, error) {
	return c.Len(), nil
}

func (c *MemoryCache) Capacity() int {
	return c.maxEntries
}

func (c *MemoryCache) Description() string {
	return "memory lru"
}

func (c *MemoryCache) Close() error {
	return nil
}

func (c *MemoryCache) staleTime() time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(c.ttl)
}

func (c *MemoryCache) removeOldest() string {
	el := c.ll.Back()
	if el == nil {
		return ""
	}
	key := el.Value.(*cacheItem).key
	c.removeElement(el)
	return key
}

func (c *MemoryCache) removeElement(el *list.Element) {
	c.ll.Remove(el)
	item := el.Value.(*cacheItem)
	delete(c.items, item.key)
}
