package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"cachestats/internal/statistics"
)

func newTrackedCache(t *testing.T, backend Backend) (*InstrumentedCache, *statistics.Tracker, *statistics.Registry) {
	t.Helper()
	reg := statistics.NewRegistry()
	c := NewInstrumentedCache("test", backend)
	tr := statistics.NewTracker(reg)
	if err := c.AddListener(tr); err != nil {
		t.Fatalf("AddListener() error: %v", err)
	}
	return c, tr, reg
}

func TestInstrumentedCacheAccessEvents(t *testing.T) {
	ctx := context.Background()
	backend, clock := newTestMemoryCache(10, time.Minute, time.Minute)
	c, tr, _ := newTrackedCache(t, backend)

	c.Put(ctx, "a", Entry{Value: "1"})
	c.Get(ctx, "a")
	c.Get(ctx, "a")
	c.Get(ctx, "nope")
	clock.advance(90 * time.Second)
	if _, ok := c.Get(ctx, "a"); !ok {
		t.Fatalf("stale entry not served")
	}

	s := tr.Snapshot()
	if s.Hits != 2 || s.StaleHits != 1 || s.Misses != 1 {
		t.Fatalf("hits/stale/misses=%d/%d/%d want=2/1/1", s.Hits, s.StaleHits, s.Misses)
	}
}

func TestInstrumentedCacheLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	backend, _ := newTestMemoryCache(2, 0, 0)
	c, tr, _ := newTrackedCache(t, backend)

	c.Put(ctx, "a", Entry{Value: "1"})
	c.Put(ctx, "a", Entry{Value: "2"})
	c.Put(ctx, "b", Entry{Value: "3"})
	c.Put(ctx, "c", Entry{Value: "4"}) // evicts a
	c.Remove(ctx, "b")
	c.Remove(ctx, "b")

	s := tr.Snapshot()
	if s.EntriesAdded != 3 || s.EntriesUpdated != 1 || s.EntriesRemoved != 2 {
		t.Fatalf("added/updated/removed=%d/%d/%d want=3/1/2", s.EntriesAdded, s.EntriesUpdated, s.EntriesRemoved)
	}
}

func TestInstrumentedCacheGroupFlushCountsOnce(t *testing.T) {
	ctx := context.Background()
	backend, _ := newTestMemoryCache(10, time.Hour, time.Hour)
	c, tr, _ := newTrackedCache(t, backend)

	c.Put(ctx, "a", Entry{Value: "1", Groups: []string{"news"}})
	c.Put(ctx, "b", Entry{Value: "2", Groups: []string{"news", "sport"}})
	c.Put(ctx, "c", Entry{Value: "3"})
	c.Get(ctx, "a")

	if err := c.FlushGroup(ctx, "news"); err != nil {
		t.Fatalf("FlushGroup() error: %v", err)
	}
	s := tr.Snapshot()
	if s.FlushCount != 1 {
		t.Fatalf("FlushCount=%d want=1", s.FlushCount)
	}
	if s.HitsCumulative != 1 || s.Hits != 0 {
		t.Fatalf("hits=%d/%d want=0/1", s.Hits, s.HitsCumulative)
	}
	if s.LastFlushReason != "group news" {
		t.Fatalf("LastFlushReason=%q want=group news", s.LastFlushReason)
	}

	c.Get(ctx, "a")
	c.Get(ctx, "c")
	s = tr.Snapshot()
	if s.StaleHits != 1 || s.Hits != 1 {
		t.Fatalf("after group flush stale/hits=%d/%d want=1/1", s.StaleHits, s.Hits)
	}
}

func TestInstrumentedCacheFlushDispatch(t *testing.T) {
	ctx := context.Background()
	backend, _ := newTestMemoryCache(10, time.Hour, time.Hour)
	c, tr, _ := newTrackedCache(t, backend)

	c.Put(ctx, "user:1", Entry{Value: "1"})
	c.Put(ctx, "user:2", Entry{Value: "2", Scope: statistics.ScopeSession})
	c.Put(ctx, "page:1", Entry{Value: "3"})

	reqs := []struct {
		req    FlushRequest
		reason string
	}{
		{FlushRequest{Kind: statistics.FlushPattern, Pattern: "user:"}, "pattern user:"},
		{FlushRequest{Kind: statistics.FlushScope, Scope: statistics.ScopeSession}, "scope session"},
		{FlushRequest{Kind: statistics.FlushEntry, Key: "page:1", Origin: "api"}, "entry page:1 / api"},
		{FlushRequest{Kind: statistics.FlushEntry, Key: "page:1", Origin: statistics.NestedOrigin}, "entry page:1 / api"},
	}
	for i, r := range reqs {
		if err := c.Flush(ctx, r.req); err != nil {
			t.Fatalf("Flush(%d) error: %v", i, err)
		}
		if got, _ := tr.Counters().LastFlush(); got != r.reason {
			t.Fatalf("Flush(%d) reason=%q want=%q", i, got, r.reason)
		}
	}
	if got := tr.Counters().FlushCount(); got != 3 {
		t.Fatalf("FlushCount()=%d want=3", got)
	}

	if err := c.Flush(ctx, FlushRequest{Kind: statistics.FlushKind(99)}); !errors.Is(err, ErrUnknownFlushKind) {
		t.Fatalf("Flush(unknown) error=%v want=%v", err, ErrUnknownFlushKind)
	}

	if err := c.Flush(ctx, FlushRequest{Kind: statistics.FlushCache}); err != nil {
		t.Fatalf("Flush(cache) error: %v", err)
	}
	if got, _ := tr.Counters().LastFlush(); len(got) < 5 || got[:5] != "wide " {
		t.Fatalf("reason=%q want wide prefix", got)
	}
}

func TestInstrumentedCacheCloseTearsDownTrackers(t *testing.T) {
	backend, _ := newTestMemoryCache(10, 0, 0)
	c, tr, reg := newTrackedCache(t, backend)

	if !reg.Contains(tr) {
		t.Fatalf("tracker not registered after AddListener")
	}
	if got := tr.Name(); got != "test" {
		t.Fatalf("Name()=%q want=test", got)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if reg.Contains(tr) {
		t.Fatalf("tracker still registered after Close")
	}
	if err := c.AddListener(statistics.NewTracker(reg)); err == nil {
		t.Fatalf("AddListener() on closed cache succeeded")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
}

func TestInstrumentedCacheRejectsReinitializedTracker(t *testing.T) {
	backend, _ := newTestMemoryCache(10, 0, 0)
	c, tr, _ := newTrackedCache(t, backend)
	other := NewInstrumentedCache("other", NewMemoryCache(1, 0, 0))

	if err := other.AddListener(tr); !errors.Is(err, statistics.ErrAlreadyInitialized) {
		t.Fatalf("AddListener() error=%v want=%v", err, statistics.ErrAlreadyInitialized)
	}
	if len(other.Listeners()) != 0 {
		t.Fatalf("rejected listener was attached")
	}
	if len(c.Listeners()) != 1 {
		t.Fatalf("first cache lost its listener")
	}
}

func TestInstrumentedCacheRemoveExpiredIsNotCounted(t *testing.T) {
	ctx := context.Background()
	backend, clock := newTestMemoryCache(10, time.Second, 0)
	c, tr, _ := newTrackedCache(t, backend)

	c.Put(ctx, "k", Entry{Value: "1"})
	clock.advance(2 * time.Second)
	if err := c.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}

	s := tr.Snapshot()
	if s.EntriesAdded != 1 || s.EntriesRemoved != 0 {
		t.Fatalf("added/removed=%d/%d want=1/0", s.EntriesAdded, s.EntriesRemoved)
	}
	if backend.Len() != 0 {
		t.Fatalf("Len()=%d want=0", backend.Len())
	}
}

func TestInstrumentedCacheFlushAbsentEntryCounts(t *testing.T) {
	ctx := context.Background()
	backend, _ := newTestMemoryCache(10, time.Hour, time.Hour)
	c, tr, _ := newTrackedCache(t, backend)

	c.Get(ctx, "ghost")
	if err := c.FlushEntry(ctx, "ghost", "admin"); err != nil {
		t.Fatalf("FlushEntry() error: %v", err)
	}

	s := tr.Snapshot()
	if s.FlushCount != 1 {
		t.Fatalf("FlushCount=%d want=1", s.FlushCount)
	}
	if s.LastFlushReason != "entry ghost / admin" {
		t.Fatalf("LastFlushReason=%q want=entry ghost / admin", s.LastFlushReason)
	}
	if s.Misses != 0 || s.MissesCumulative != 1 {
		t.Fatalf("misses=%d/%d want=0/1", s.Misses, s.MissesCumulative)
	}
	if backend.Len() != 0 {
		t.Fatalf("flush of absent key created an entry")
	}
}

func TestInstrumentedCacheNilIsInert(t *testing.T) {
	ctx := context.Background()
	c := NewInstrumentedCache("none", nil)
	if c != nil {
		t.Fatalf("NewInstrumentedCache(nil backend)=%v want=nil", c)
	}

	if err := c.Put(ctx, "a", Entry{Value: "1"}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := c.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, ok := c.Get(ctx, "a"); ok {
		t.Fatalf("Get() on nil cache hit")
	}
	if err := c.FlushEntry(ctx, "a", "api"); err != nil {
		t.Fatalf("FlushEntry() error: %v", err)
	}
	if err := c.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll() error: %v", err)
	}
	if n, err := c.Size(ctx); n != 0 || err != nil {
		t.Fatalf("Size()=%d,%v want=0,nil", n, err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if got := c.Name(); got != "" {
		t.Fatalf("Name()=%q want empty", got)
	}
}

func TestInstrumentedCacheSizeAndCapacity(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		backend  Backend
		capacity int
		desc     string
	}{
		{"memory", NewMemoryCache(8, 0, 0), 8, "memory lru"},
		{"sharded", NewShardedMemoryCache(16, 0, 0, 4), 16, "sharded memory lru, 4 shards"},
		{"lfu", NewGCache(8, 0, 0, PolicyLFU), 8, "gcache lfu"},
		{"arc", NewGCache(8, 0, 0, PolicyARC), 8, "gcache arc"},
	}
	for _, tt := range tests {
		c := NewInstrumentedCache(tt.name, tt.backend)
		c.Put(ctx, "a", Entry{Value: "1"})
		c.Put(ctx, "b", Entry{Value: "2"})
		c.Put(ctx, "a", Entry{Value: "3"})

		if n, err := c.Size(ctx); n != 2 || err != nil {
			t.Fatalf("%s Size()=%d,%v want=2,nil", tt.name, n, err)
		}
		if got := c.Capacity(); got != tt.capacity {
			t.Fatalf("%s Capacity()=%d want=%d", tt.name, got, tt.capacity)
		}
		if got := c.Description(); got != tt.desc {
			t.Fatalf("%s Description()=%q want=%q", tt.name, got, tt.desc)
		}
	}
}
