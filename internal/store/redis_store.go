package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"cachestats/internal/breaker"
)

type redisStore struct {
	client *redis.Client
	prefix string
	cb     *breaker.CircuitBreaker
}

func newRedisStore(addr, password string, db int, prefix string) (*redisStore, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "cachestats:"
	}
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &redisStore{
		client: client,
		prefix: prefix,
		cb:     breaker.Get("redis-store:" + addr),
	}, nil
}

func (s *redisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *redisStore) snapshotKey(name string) string {
	return s.prefix + "snapshot:" + name
}

func (s *redisStore) namesKey() string {
	return s.prefix + "snapshots"
}

func (s *redisStore) Save(ctx context.Context, rec Record) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redis store not configured")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.cb.Do(func() error {
		pipe := s.client.TxPipeline()
		pipe.Set(ctx, s.snapshotKey(rec.Name), data, 0)
		pipe.SAdd(ctx, s.namesKey(), rec.Name)
		_, err := pipe.Exec(ctx)
		return err
	})
}

func (s *redisStore) Load(ctx context.Context, name string) (*Record, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("redis store not configured")
	}
	var value string
	err := s.cb.Do(func() error {
		v, err := s.client.Get(ctx, s.snapshotKey(name)).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		value = v
		return err
	})
	if err != nil {
		return nil, err
	}
	if value == "" {
		return nil, ErrNotFound
	}
	var rec Record
	if err := json.Unmarshal([]byte(value), &rec); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", name, err)
	}
	return &rec, nil
}

func (s *redisStore) List(ctx context.Context) ([]*Record, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("redis store not configured")
	}
	var names []string
	err := s.cb.Do(func() error {
		var err error
		names, err = s.client.SMembers(ctx, s.namesKey()).Result()
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := make([]*Record, 0, len(names))
	for _, name := range names {
		rec, err := s.Load(ctx, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
