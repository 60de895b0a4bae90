package cache

import (
	"context"
	"testing"
	"time"
)

func newTestGCache(size int, ttl, staleTTL time.Duration, policy string) (*GCache, *fakeClock) {
	clock := &fakeClock{t: time.Now()}
	g := NewGCache(size, ttl, staleTTL, policy)
	g.now = clock.now
	return g, clock
}

func TestGCacheFreshStaleReplace(t *testing.T) {
	ctx := context.Background()
	for _, policy := range []string{PolicyLFU, PolicyARC, ""} {
		t.Run(policy, func(t *testing.T) {
			g, clock := newTestGCache(10, time.Minute, time.Hour, policy)
			if replaced, err := g.Put(ctx, "a", Entry{Value: "1"}); err != nil || replaced {
				t.Fatalf("Put()=%v,%v want=false,nil", replaced, err)
			}
			if replaced, _ := g.Put(ctx, "a", Entry{Value: "2"}); !replaced {
				t.Fatalf("Put() over existing key replaced=false")
			}
			if e, state, _ := g.Get(ctx, "a"); state != StateFresh || e.Value != "2" {
				t.Fatalf("Get()=%+v,%v want value 2 fresh", e, state)
			}
			clock.advance(2 * time.Minute)
			if _, state, _ := g.Get(ctx, "a"); state != StateStale {
				t.Fatalf("state=%v want=stale", state)
			}
			if _, state, _ := g.Get(ctx, "missing"); state != StateMissing {
				t.Fatalf("state=%v want=missing", state)
			}
		})
	}
}

func TestGCacheMarkStaleAndDelete(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGCache(10, time.Hour, time.Hour, PolicyLFU)
	var evicted []string
	g.SetEvictHook(func(key string) { evicted = append(evicted, key) })

	g.Put(ctx, "a", Entry{Value: "1"})
	g.Put(ctx, "b", Entry{Value: "2"})
	if found, err := g.MarkStale(ctx, "a"); err != nil || !found {
		t.Fatalf("MarkStale()=%v,%v want=true,nil", found, err)
	}
	if _, state, _ := g.Peek(ctx, "a"); state != StateStale {
		t.Fatalf("state=%v want=stale", state)
	}
	if ok, _ := g.Delete(ctx, "b"); !ok {
		t.Fatalf("Delete()=false want=true")
	}
	if len(evicted) != 0 {
		t.Fatalf("evicted=%v want none for explicit delete", evicted)
	}
	keys, _ := g.Keys(ctx)
	if len(keys) != 1 || keys[0] != "a" {
		t.Fatalf("Keys()=%v want=[a]", keys)
	}
}

func TestGCacheDeleteExpiredReportsAbsent(t *testing.T) {
	ctx := context.Background()
	g, clock := newTestGCache(10, time.Second, 0, PolicyARC)

	g.Put(ctx, "k", Entry{Value: "1"})
	clock.advance(2 * time.Second)
	if ok, err := g.Delete(ctx, "k"); ok || err != nil {
		t.Fatalf("Delete()=%v,%v want=false,nil", ok, err)
	}
	if ok, _ := g.Delete(ctx, "k"); ok {
		t.Fatalf("second Delete()=true want=false")
	}
}

func TestGCacheCapacityEvictionNotifies(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGCache(2, 0, 0, PolicyLFU)
	var evicted []string
	g.SetEvictHook(func(key string) { evicted = append(evicted, key) })

	g.Put(ctx, "a", Entry{Value: "1"})
	g.Put(ctx, "b", Entry{Value: "2"})
	g.Get(ctx, "a")
	g.Get(ctx, "a")
	g.Put(ctx, "c", Entry{Value: "3"})

	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("evicted=%v want=[b]", evicted)
	}
	if g.Len() != 2 {
		t.Fatalf("Len()=%d want=2", g.Len())
	}
}
