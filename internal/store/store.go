package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cachestats/internal/statistics"
)

var ErrNotFound = errors.New("store: snapshot not found")

// Record is one persisted tracker snapshot.
type Record struct {
	Name     string              `json:"name"`
	Tracker  uint64              `json:"tracker"`
	Snapshot statistics.Snapshot `json:"snapshot"`
	Ratios   statistics.Ratios   `json:"ratios"`
	SavedAt  time.Time           `json:"saved_at"`
}

type Options struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

type snapshotStore interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, name string) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
	Close() error
}

// Store persists statistics snapshots so they outlive the process.
type Store struct {
	snapshots snapshotStore
}

func New(opts Options) (*Store, error) {
	redisStore, err := newRedisStore(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to init redis store: %w", err)
	}
	return &Store{snapshots: redisStore}, nil
}

func (s *Store) Close() error {
	if s == nil || s.snapshots == nil {
		return nil
	}
	return s.snapshots.Close()
}

// SaveTracker writes the current snapshot of t under its cache name.
func (s *Store) SaveTracker(ctx context.Context, t *statistics.Tracker) error {
	name := t.Name()
	if name == "" {
		return nil
	}
	snap := t.Snapshot()
	return s.snapshots.Save(ctx, Record{
		Name:     name,
		Tracker:  t.ID(),
		Snapshot: snap,
		Ratios:   statistics.RatiosOf(t),
		SavedAt:  time.Now(),
	})
}

// SaveAll persists every tracker in reg and returns how many were written.
func (s *Store) SaveAll(ctx context.Context, reg *statistics.Registry) (int, error) {
	saved := 0
	var errs []error
	for _, t := range reg.SnapshotAll() {
		if t.Name() == "" {
			continue
		}
		if err := s.SaveTracker(ctx, t); err != nil {
			slog.Warn("Save snapshot failed", "cache", t.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		saved++
	}
	return saved, errors.Join(errs...)
}

func (s *Store) Load(ctx context.Context, name string) (*Record, error) {
	return s.snapshots.Load(ctx, name)
}

func (s *Store) List(ctx context.Context) ([]*Record, error) {
	return s.snapshots.List(ctx)
}
