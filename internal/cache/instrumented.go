package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cachestats/internal/statistics"
)

// InstrumentedCache is a named cache that reports its activity to
// statistics listeners. It is the Subject the trackers observe.
type InstrumentedCache struct {
	name    string
	backend Backend

	mu        sync.RWMutex
	listeners []statistics.Listener
	closed    bool
}

func NewInstrumentedCache(name string, backend Backend) *InstrumentedCache {
	if backend == nil {
		return nil
	}
	c := &InstrumentedCache{
		name:    name,
		backend: backend,
	}
	if n, ok := backend.(evictNotifier); ok {
		n.SetEvictHook(c.evicted)
	}
	return c
}

func (c *InstrumentedCache) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

func (c *InstrumentedCache) String() string {
	return c.Name()
}

func (c *InstrumentedCache) Backend() Backend {
	return c.backend
}

// Size counts live entries, walking the keys when the backend cannot
// count them itself.
func (c *InstrumentedCache) Size(ctx context.Context) (int, error) {
	if c == nil {
		return 0, nil
	}
	if s, ok := c.backend.(Sizer); ok {
		return s.Size(ctx)
	}
	keys, err := c.backend.Keys(ctx)
	return len(keys), err
}

// Capacity is the entry limit, or 0 when unbounded or unknown.
func (c *InstrumentedCache) Capacity() int {
	if c == nil {
		return 0
	}
	if s, ok := c.backend.(Sizer); ok {
		return s.Capacity()
	}
	return 0
}

// Description names the backend behind the cache.
func (c *InstrumentedCache) Description() string {
	if c == nil {
		return ""
	}
	if d, ok := c.backend.(describer); ok {
		return d.Description()
	}
	return fmt.Sprintf("%T", c.backend)
}

// AddListener initializes l against this cache and starts delivering events.
func (c *InstrumentedCache) AddListener(l statistics.Listener) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("cache %s: closed", c.name)
	}
	if err := l.Initialize(c); err != nil {
		return fmt.Errorf("cache %s: initialize listener: %w", c.name, err)
	}
	c.listeners = append(c.listeners, l)
	return nil
}

func (c *InstrumentedCache) Listeners() []statistics.Listener {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]statistics.Listener, len(c.listeners))
	copy(out, c.listeners)
	return out
}

func (c *InstrumentedCache) Get(ctx context.Context, key string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	entry, state, err := c.backend.Get(ctx, key)
	if err != nil {
		slog.Warn("Cache lookup failed", "cache", c.name, "key", key, "error", err)
		state = StateMissing
	}
	switch state {
	case StateFresh:
		c.emitAccess(statistics.AccessHit)
		return entry, true
	case StateStale:
		c.emitAccess(statistics.AccessStaleHit)
		return entry, true
	default:
		c.emitAccess(statistics.AccessMiss)
		return Entry{}, false
	}
}

func (c *InstrumentedCache) Put(ctx context.Context, key string, entry Entry) error {
	if c == nil {
		return nil
	}
	replaced, err := c.backend.Put(ctx, key, entry)
	if err != nil {
		return fmt.Errorf("cache %s: put %q: %w", c.name, key, err)
	}
	c.each(func(l statistics.Listener) {
		if replaced {
			l.OnEntryUpdated()
		} else {
			l.OnEntryAdded()
		}
	})
	return nil
}

func (c *InstrumentedCache) Remove(ctx context.Context, key string) error {
	if c == nil {
		return nil
	}
	removed, err := c.backend.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("cache %s: remove %q: %w", c.name, key, err)
	}
	if removed {
		c.each(func(l statistics.Listener) { l.OnEntryRemoved() })
	}
	return nil
}

// FlushEntry marks key stale. The flush is counted whether or not the key
// was cached; the event carries origin so listeners can tell primary
// flushes from nested ones.
func (c *InstrumentedCache) FlushEntry(ctx context.Context, key string, origin statistics.Origin) error {
	if c == nil {
		return nil
	}
	if _, err := c.backend.MarkStale(ctx, key); err != nil {
		return fmt.Errorf("cache %s: flush entry %q: %w", c.name, key, err)
	}
	c.emitFlush(statistics.FlushEvent{Kind: statistics.FlushEntry, Key: key, Origin: origin, At: time.Now()})
	return nil
}

// FlushAll marks every entry stale.
func (c *InstrumentedCache) FlushAll(ctx context.Context) error {
	if err := c.flushMatching(ctx, func(string, Entry) bool { return true }); err != nil {
		return fmt.Errorf("cache %s: flush all: %w", c.name, err)
	}
	c.emitFlush(statistics.FlushEvent{Kind: statistics.FlushCache, At: time.Now()})
	return nil
}

func (c *InstrumentedCache) FlushGroup(ctx context.Context, group string) error {
	err := c.flushMatching(ctx, func(_ string, e Entry) bool { return e.InGroup(group) })
	if err != nil {
		return fmt.Errorf("cache %s: flush group %q: %w", c.name, group, err)
	}
	c.emitFlush(statistics.FlushEvent{Kind: statistics.FlushGroup, Group: group, At: time.Now()})
	return nil
}

// FlushPattern flushes every key containing pattern.
func (c *InstrumentedCache) FlushPattern(ctx context.Context, pattern string) error {
	err := c.flushMatching(ctx, func(key string, _ Entry) bool { return matchesPattern(key, pattern) })
	if err != nil {
		return fmt.Errorf("cache %s: flush pattern %q: %w", c.name, pattern, err)
	}
	c.emitFlush(statistics.FlushEvent{Kind: statistics.FlushPattern, Pattern: pattern, At: time.Now()})
	return nil
}

func (c *InstrumentedCache) FlushScope(ctx context.Context, scope statistics.Scope) error {
	err := c.flushMatching(ctx, func(_ string, e Entry) bool { return e.Scope == scope })
	if err != nil {
		return fmt.Errorf("cache %s: flush scope %s: %w", c.name, statistics.ScopeName(scope), err)
	}
	c.emitFlush(statistics.FlushEvent{Kind: statistics.FlushScope, Scope: scope, At: time.Now()})
	return nil
}

// Flush dispatches req to the matching flush operation.
func (c *InstrumentedCache) Flush(ctx context.Context, req FlushRequest) error {
	switch req.Kind {
	case statistics.FlushCache:
		return c.FlushAll(ctx)
	case statistics.FlushEntry:
		return c.FlushEntry(ctx, req.Key, req.Origin)
	case statistics.FlushGroup:
		return c.FlushGroup(ctx, req.Group)
	case statistics.FlushPattern:
		return c.FlushPattern(ctx, req.Pattern)
	case statistics.FlushScope:
		return c.FlushScope(ctx, req.Scope)
	default:
		return fmt.Errorf("%w: %v", ErrUnknownFlushKind, req.Kind)
	}
}

// Close tears down every listener and closes the backend.
func (c *InstrumentedCache) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	listeners := c.listeners
	c.listeners = nil
	c.mu.Unlock()

	for _, l := range listeners {
		if err := l.Teardown(); err != nil {
			slog.Warn("Listener teardown failed", "cache", c.name, "error", err)
		}
	}
	return c.backend.Close()
}

// flushMatching marks matching entries stale, announcing each as a nested
// entry flush ahead of the enclosing group, pattern or scope event.
func (c *InstrumentedCache) flushMatching(ctx context.Context, match func(key string, e Entry) bool) error {
	if c == nil {
		return nil
	}
	keys, err := c.backend.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		entry, state, err := c.backend.Peek(ctx, key)
		if err != nil {
			return err
		}
		if state == StateMissing || !match(key, entry) {
			continue
		}
		found, err := c.backend.MarkStale(ctx, key)
		if err != nil {
			return err
		}
		if found {
			c.emitFlush(statistics.FlushEvent{Kind: statistics.FlushEntry, Key: key, Origin: statistics.NestedOrigin, At: time.Now()})
		}
	}
	return nil
}

func (c *InstrumentedCache) evicted(key string) {
	slog.Debug("Cache entry evicted", "cache", c.name, "key", key)
	c.each(func(l statistics.Listener) { l.OnEntryRemoved() })
}

func (c *InstrumentedCache) emitAccess(kind statistics.AccessKind) {
	c.each(func(l statistics.Listener) { l.OnAccessed(kind) })
}

func (c *InstrumentedCache) emitFlush(ev statistics.FlushEvent) {
	c.each(func(l statistics.Listener) { l.OnFlushed(ev) })
}

func (c *InstrumentedCache) each(fn func(statistics.Listener)) {
	if c == nil {
		return
	}
	c.mu.RLock()
	listeners := c.listeners
	c.mu.RUnlock()
	for _, l := range listeners {
		fn(l)
	}
}
