// Package cache provides the caches whose statistics are tracked. Backends
// store entries; InstrumentedCache wraps a backend and reports every access,
// lifecycle change and flush to its statistics listeners.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"cachestats/internal/statistics"
)

var ErrUnknownFlushKind = errors.New("cache: unknown flush kind")

// Entry is one cached value with the metadata flushes select on.
type Entry struct {
	Value     string           `json:"value"`
	Groups    []string         `json:"groups,omitempty"`
	Scope     statistics.Scope `json:"scope,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// InGroup reports whether the entry belongs to group.
func (e Entry) InGroup(group string) bool {
	for _, g := range e.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// State is the freshness of an entry found by a lookup.
type State int

const (
	StateMissing State = iota
	StateFresh
	StateStale
)

// Backend stores entries. Fresh entries become stale once their TTL
// passes or they are marked stale, and disappear once the stale window
// passes.
type Backend interface {
	Get(ctx context.Context, key string) (Entry, State, error)
	// Peek is Get without touching recency.
	Peek(ctx context.Context, key string) (Entry, State, error)
	Put(ctx context.Context, key string, entry Entry) (replaced bool, err error)
	Delete(ctx context.Context, key string) (bool, error)
	MarkStale(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Sizer is implemented by backends that can count their entries.
// Capacity 0 means the backend has no entry limit.
type Sizer interface {
	Size(ctx context.Context) (int, error)
	Capacity() int
}

// describer names the backend and its replacement policy.
type describer interface {
	Description() string
}

// evictNotifier is implemented by backends that drop entries on their own.
type evictNotifier interface {
	SetEvictHook(fn func(key string))
}

// FlushRequest selects what Flush invalidates; only the field matching
// Kind is used.
type FlushRequest struct {
	Kind    statistics.FlushKind
	Key     string
	Group   string
	Pattern string
	Scope   statistics.Scope
	Origin  statistics.Origin
}

func matchesPattern(key, pattern string) bool {
	return strings.Contains(key, pattern)
}
