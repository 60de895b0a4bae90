package cache

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"
)

// ShardedMemoryCache spreads keys over independent MemoryCache shards to
// cut lock contention.
type ShardedMemoryCache struct {
	shards     []*MemoryCache
	shardCount int
}

func NewShardedMemoryCache(maxEntries int, ttl, staleTTL time.Duration, shardCount int) *ShardedMemoryCache {
	if shardCount <= 0 {
		shardCount = 16
	}
	if maxEntries < 0 {
		maxEntries = 0
	}

	entriesPerShard := maxEntries / shardCount
	if entriesPerShard == 0 && maxEntries > 0 {
		entriesPerShard = 1
	}

	shards := make([]*MemoryCache, shardCount)
	for i := 0; i < shardCount; i++ {
		shards[i] = NewMemoryCache(entriesPerShard, ttl, staleTTL)
	}

	return &ShardedMemoryCache{
		shards:     shards,
		shardCount: shardCount,
	}
}

func (c *ShardedMemoryCache) getShard(key string) *MemoryCache {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%uint32(c.shardCount)]
}

func (c *ShardedMemoryCache) SetEvictHook(fn func(key string)) {
	for _, s := range c.shards {
		s.SetEvictHook(fn)
	}
}

func (c *ShardedMemoryCache) Get(ctx context.Context, key string) (Entry, State, error) {
	return c.getShard(key).Get(ctx, key)
}

func (c *ShardedMemoryCache) Peek(ctx context.Context, key string) (Entry, State, error) {
	return c.getShard(key).Peek(ctx, key)
}

func (c *ShardedMemoryCache) Put(ctx context.Context, key string, entry Entry) (bool, error) {
	return c.getShard(key).Put(ctx, key, entry)
}

func (c *ShardedMemoryCache) Delete(ctx context.Context, key string) (bool, error) {
	return c.getShard(key).Delete(ctx, key)
}

func (c *ShardedMemoryCache) MarkStale(ctx context.Context, key string) (bool, error) {
	return c.getShard(key).MarkStale(ctx, key)
}

// Keys concatenates the keys of every shard; there is no global order.
func (c *ShardedMemoryCache) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	for _, s := range c.shards {
		k, err := s.Keys(ctx)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k...)
	}
	return keys, nil
}

func (c *ShardedMemoryCache) Len() int {
	n := 0
	for _, s := range c.shards {
		n += s.Len()
	}
	return n
}

func (c *ShardedMemoryCache) Size(context.Context) (int, error) {
	return c.Len(), nil
}

func (c *ShardedMemoryCache) Capacity() int {
	n := 0
	for _, s := range c.shards {
		n += s.Capacity()
	}
	return n
}

func (c *ShardedMemoryCache) Description() string {
	return fmt.Sprintf("sharded memory lru, %d shards", c.shardCount)
}

func (c *ShardedMemoryCache) Close() error {
	return nil
}
