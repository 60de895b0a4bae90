package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bluele/gcache"
)

const (
	PolicyLFU = "lfu"
	PolicyARC = "arc"
)

// GCache is a backend over bluele/gcache for the LFU and ARC replacement
// policies. gcache drops keys at the end of the stale window; the stale
// point travels with the value.
type GCache struct {
	c        gcache.Cache
	capacity int
	ttl      time.Duration
	staleTTL time.Duration
	now      func() time.Time
	policy   string

	mu       sync.Mutex
	onEvict  func(key string)
	deleting map[string]int
}

type gcacheItem struct {
	entry   Entry
	staleAt time.Time
}

// NewGCache builds a backend with policy PolicyLFU or PolicyARC; anything
// else falls back to LRU.
func NewGCache(maxEntries int, ttl, staleTTL time.Duration, policy string) *GCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	if staleTTL < 0 {
		staleTTL = 0
	}
	g := &GCache{
		capacity: maxEntries,
		ttl:      ttl,
		staleTTL: staleTTL,
		now:      time.Now,
		deleting: make(map[string]int),
	}
	b := gcache.New(maxEntries)
	switch policy {
	case PolicyLFU:
		b = b.LFU()
	case PolicyARC:
		b = b.ARC()
	default:
		policy = "lru"
		b = b.LRU()
	}
	g.policy = policy
	g.c = b.EvictedFunc(g.evicted).Build()
	return g
}

func (g *GCache) SetEvictHook(fn func(key string)) {
	g.mu.Lock()
	g.onEvict = fn
	g.mu.Unlock()
}

// evicted runs under gcache's lock for capacity drops, expiries and
// explicit removals; only capacity drops reach the hook.
func (g *GCache) evicted(k, v interface{}) {
	key, _ := k.(string)
	item, _ := v.(*gcacheItem)
	g.mu.Lock()
	hook := g.onEvict
	explicit := g.deleting[key] > 0
	g.mu.Unlock()
	if hook == nil || explicit || item == nil || g.stateOf(item) == StateMissing {
		return
	}
	hook(key)
}

func (g *GCache) Get(_ context.Context, key string) (Entry, State, error) {
	return g.lookup(key)
}

// Peek equals Get: gcache has no read that leaves recency alone.
func (g *GCache) Peek(_ context.Context, key string) (Entry, State, error) {
	return g.lookup(key)
}

func (g *GCache) lookup(key string) (Entry, State, error) {
	item, err := g.item(key)
	if err != nil || item == nil {
		return Entry{}, StateMissing, err
	}
	state := g.stateOf(item)
	if state == StateMissing {
		g.remove(key)
		return Entry{}, StateMissing, nil
	}
	return item.entry, state, nil
}

func (g *GCache) Put(_ context.Context, key string, entry Entry) (bool, error) {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = g.now()
	}
	prev, err := g.item(key)
	if err != nil {
		return false, err
	}
	replaced := prev != nil && g.stateOf(prev) != StateMissing

	item := &gcacheItem{entry: entry}
	if g.ttl > 0 {
		item.staleAt = g.now().Add(g.ttl)
		return replaced, g.c.SetWithExpire(key, item, g.ttl+g.staleTTL)
	}
	return replaced, g.c.Set(key, item)
}

func (g *GCache) Delete(_ context.Context, key string) (bool, error) {
	item, err := g.item(key)
	if err != nil {
		return false, err
	}
	expired := item != nil && g.stateOf(item) == StateMissing
	return g.remove(key) && !expired, nil
}

func (g *GCache) MarkStale(_ context.Context, key string) (bool, error) {
	item, err := g.item(key)
	if err != nil || item == nil {
		return false, err
	}
	if g.stateOf(item) == StateMissing {
		g.remove(key)
		return false, nil
	}
	if g.staleTTL <= 0 {
		return g.remove(key), nil
	}
	now := g.now()
	if item.staleAt.IsZero() || item.staleAt.After(now) {
		item = &gcacheItem{entry: item.entry, staleAt: now}
	}
	return true, g.c.SetWithExpire(key, item, g.staleTTL)
}

func (g *GCache) Keys(_ context.Context) ([]string, error) {
	raw := g.c.Keys(true)
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		if s, ok := k.(string); ok {
			keys = append(keys, s)
		}
	}
	return keys, nil
}

func (g *GCache) Len() int {
	return g.c.Len(true)
}

func (g *GCache) Size(context.Context) (int, error) {
	return g.Len(), nil
}

func (g *GCache) Capacity() int {
	return g.capacity
}

func (g *GCache) Description() string {
	return "gcache " + g.policy
}

func (g *GCache) Close() error {
	g.mu.Lock()
	g.onEvict = nil
	g.mu.Unlock()
	g.c.Purge()
	return nil
}

func (g *GCache) item(key string) (*gcacheItem, error) {
	v, err := g.c.GetIFPresent(key)
	if errors.Is(err, gcache.KeyNotFoundError) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	item, _ := v.(*gcacheItem)
	return item, nil
}

func (g *GCache) remove(key string) bool {
	g.mu.Lock()
	g.deleting[key]++
	g.mu.Unlock()

	ok := g.c.Remove(key)

	g.mu.Lock()
	if g.deleting[key]--; g.deleting[key] <= 0 {
		delete(g.deleting, key)
	}
	g.mu.Unlock()
	return ok
}

func (g *GCache) stateOf(item *gcacheItem) State {
	if item.staleAt.IsZero() {
		return StateFresh
	}
	now := g.now()
	if now.Before(item.staleAt) {
		return StateFresh
	}
	if now.Before(item.staleAt.Add(g.staleTTL)) {
		return StateStale
	}
	return StateMissing
}
