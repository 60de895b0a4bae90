package main

import (
	"context"
	"log/slog"
	"time"

	"cachestats/internal/metrics"
	"cachestats/internal/statistics"
)

type snapshotSaver interface {
	SaveAll(ctx context.Context, reg *statistics.Registry) (int, error)
}

func startSnapshotLoop(ctx context.Context, s snapshotSaver, reg *statistics.Registry, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	slog.Info("Snapshot loop enabled", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			saveSnapshots(ctx, s, reg)
		}
	}
}

func saveSnapshots(ctx context.Context, s snapshotSaver, reg *statistics.Registry) {
	saved, err := s.SaveAll(ctx, reg)
	if saved > 0 {
		metrics.SnapshotsSaved.WithLabelValues("ok").Add(float64(saved))
	}
	if err != nil {
		metrics.SnapshotsSaved.WithLabelValues("error").Inc()
		slog.Warn("Snapshot save incomplete", "saved", saved, "error", err)
		return
	}
	slog.Debug("Snapshots saved", "count", saved)
}

func startStatsLogLoop(ctx context.Context, reg *statistics.Registry, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logStats(ctx, reg)
		}
	}
}

// logStats writes one debug line per live tracker.
func logStats(ctx context.Context, reg *statistics.Registry) int {
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return 0
	}
	n := 0
	for _, t := range reg.SnapshotAll() {
		if t.Name() == "" {
			continue
		}
		slog.Debug("Cache statistics", "cache", t.Name(), "summary", t.Describe(), "hit_ratio", statistics.HitRatio(t))
		n++
	}
	return n
}
