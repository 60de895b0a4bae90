package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"cachestats/internal/breaker"
)

// RedisCache stores entries as JSON under prefix+key. The stale point
// travels inside the value; Redis expires the key at the end of the stale
// window.
type RedisCache struct {
	client   *redis.Client
	ttl      time.Duration
	staleTTL time.Duration
	prefix   string
	cb       *breaker.CircuitBreaker
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	StaleTTL time.Duration
	Prefix   string
}

type redisRecord struct {
	Entry   Entry     `json:"entry"`
	StaleAt time.Time `json:"stale_at"`
}

// NewRedisCache returns nil when no address is configured.
func NewRedisCache(opts RedisOptions) *RedisCache {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisCacheWithClient(client, opts)
}

// NewRedisCacheWithClient shares an existing client.
func NewRedisCacheWithClient(client *redis.Client, opts RedisOptions) *RedisCache {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "cachestats:cache:"
	}
	staleTTL := opts.StaleTTL
	if staleTTL < 0 {
		staleTTL = 0
	}
	return &RedisCache{
		client:   client,
		ttl:      opts.TTL,
		staleTTL: staleTTL,
		prefix:   prefix,
		cb:       breaker.Get("redis-cache:" + client.Options().Addr),
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Entry, State, error) {
	rec, ok, err := c.load(ctx, key)
	if err != nil || !ok {
		return Entry{}, StateMissing, err
	}
	return rec.Entry, c.stateOf(rec), nil
}

// Peek equals Get: Redis keeps no recency order.
func (c *RedisCache) Peek(ctx context.Context, key string) (Entry, State, error) {
	return c.Get(ctx, key)
}

func (c *RedisCache) Put(ctx context.Context, key string, entry Entry) (bool, error) {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now()
	}
	rec := redisRecord{Entry: entry}
	var expiry time.Duration
	if c.ttl > 0 {
		rec.StaleAt = time.Now().Add(c.ttl)
		expiry = c.ttl + c.staleTTL
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}

	replaced := false
	err = c.cb.Do(func() error {
		_, err := c.client.SetArgs(ctx, c.prefix+key, data, redis.SetArgs{TTL: expiry, Get: true}).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		replaced = true
		return nil
	})
	return replaced, err
}

func (c *RedisCache) Delete(ctx context.Context, key string) (bool, error) {
	var n int64
	err := c.cb.Do(func() error {
		var err error
		n, err = c.client.Del(ctx, c.prefix+key).Result()
		return err
	})
	return n > 0, err
}

// MarkStale rewrites the stale point to now and lets Redis drop the key
// when the stale window ends.
func (c *RedisCache) MarkStale(ctx context.Context, key string) (bool, error) {
	rec, ok, err := c.load(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if c.staleTTL <= 0 {
		return c.Delete(ctx, key)
	}
	now := time.Now()
	if rec.StaleAt.IsZero() || rec.StaleAt.After(now) {
		rec.StaleAt = now
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}
	err = c.cb.Do(func() error {
		return c.client.Set(ctx, c.prefix+key, data, c.staleTTL).Err()
	})
	return err == nil, err
}

func (c *RedisCache) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := c.cb.Do(func() error {
		keys = keys[:0]
		iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, strings.TrimPrefix(iter.Val(), c.prefix))
		}
		return iter.Err()
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Size counts the keys under the prefix.
func (c *RedisCache) Size(ctx context.Context) (int, error) {
	keys, err := c.Keys(ctx)
	return len(keys), err
}

// Capacity is zero: Redis memory policy bounds the cache, not an entry count.
func (c *RedisCache) Capacity() int {
	return 0
}

func (c *RedisCache) Description() string {
	return "redis " + c.client.Options().Addr
}

func (c *RedisCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *RedisCache) load(ctx context.Context, key string) (redisRecord, bool, error) {
	var value string
	found := false
	err := c.cb.Do(func() error {
		v, err := c.client.Get(ctx, c.prefix+key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		value, found = v, true
		return nil
	})
	if err != nil || !found {
		return redisRecord{}, false, err
	}

	var rec redisRecord
	if err := json.Unmarshal([]byte(value), &rec); err != nil {
		return redisRecord{}, false, err
	}
	return rec, true, nil
}

func (c *RedisCache) stateOf(rec redisRecord) State {
	if rec.StaleAt.IsZero() || time.Now().Before(rec.StaleAt) {
		return StateFresh
	}
	return StateStale
}
