package main

import (
	"fmt"
	"log/slog"

	"cachestats/internal/cache"
	"cachestats/internal/config"
	"cachestats/internal/metrics"
	"cachestats/internal/statistics"
	"cachestats/internal/util"
)

// buildCaches creates every configured cache with a statistics tracker in
// reg and a metrics listener attached.
func buildCaches(cfg *config.Config, reg *statistics.Registry) ([]*cache.InstrumentedCache, error) {
	out := make([]*cache.InstrumentedCache, 0, len(cfg.Caches))
	for _, cc := range cfg.Caches {
		c, err := buildCache(cfg, cc)
		if err != nil {
			closeCaches(out)
			return nil, err
		}
		if err := c.AddListener(statistics.NewTracker(reg)); err != nil {
			closeCaches(append(out, c))
			return nil, err
		}
		if err := c.AddListener(metrics.NewListener()); err != nil {
			closeCaches(append(out, c))
			return nil, err
		}
		slog.Info("Cache ready", "cache", cc.Name, "mode", cc.Mode, "size", cc.Size, "ttl", cc.TTL(), "stale", cc.StaleTTL())
		out = append(out, c)
	}
	return out, nil
}

func buildCache(cfg *config.Config, cc config.CacheConfig) (*cache.InstrumentedCache, error) {
	var backend cache.Backend
	switch cc.Mode {
	case config.ModeMemory:
		backend = cache.NewMemoryCache(cc.Size, cc.TTL(), cc.StaleTTL())
	case config.ModeSharded:
		backend = cache.NewShardedMemoryCache(cc.Size, cc.TTL(), cc.StaleTTL(), cc.Shards)
	case config.ModeLFU:
		backend = cache.NewGCache(cc.Size, cc.TTL(), cc.StaleTTL(), cache.PolicyLFU)
	case config.ModeARC:
		backend = cache.NewGCache(cc.Size, cc.TTL(), cc.StaleTTL(), cache.PolicyARC)
	case config.ModeRedis:
		rc := cache.NewRedisCache(cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cc.TTL(),
			StaleTTL: cc.StaleTTL(),
			Prefix:   cc.RedisPrefix,
		})
		if rc == nil {
			return nil, fmt.Errorf("cache %s: redis address is required", cc.Name)
		}
		backend = rc
	default:
		return nil, fmt.Errorf("cache %s: unknown mode %q", cc.Name, cc.Mode)
	}
	return cache.NewInstrumentedCache(cc.Name, backend), nil
}

// closeCaches tears down every cache, detaching their trackers.
func closeCaches(caches []*cache.InstrumentedCache) {
	util.ParallelFor(len(caches), func(i int) {
		if err := caches[i].Close(); err != nil {
			slog.Warn("Cache close failed", "cache", caches[i].Name(), "error", err)
		}
	})
}
