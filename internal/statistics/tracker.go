package statistics

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

var (
	ErrAlreadyInitialized = errors.New("statistics: tracker already initialized")
	ErrNotRegistered      = errors.New("statistics: tracker not registered")
)

var trackerSeq uint64

// Tracker counts the events of one subject. It implements Listener and
// appears in its Registry between Initialize and Teardown.
type Tracker struct {
	id       uint64
	counters CounterSet
	registry *Registry

	mu          sync.RWMutex
	subject     Subject
	initialized bool
}

// NewTracker returns a tracker that will register into registry, or into
// the process-wide registry when registry is nil.
func NewTracker(registry *Registry) *Tracker {
	if registry == nil {
		registry = Default()
	}
	return &Tracker{
		id:       atomic.AddUint64(&trackerSeq, 1),
		registry: registry,
	}
}

// ID is a stable handle, unique within the process.
func (t *Tracker) ID() uint64 {
	return t.id
}

// Initialize binds the subject and registers the tracker. It may be
// called once per tracker.
func (t *Tracker) Initialize(subject Subject) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.initialized {
		slog.Error("statistics tracker initialized twice", "tracker", t.id, "cache", subjectName(subject))
		return ErrAlreadyInitialized
	}
	t.initialized = true
	t.subject = subject
	t.registry.Register(t)
	return nil
}

// Teardown releases the subject and leaves the registry.
func (t *Tracker) Teardown() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	name := subjectName(t.subject)
	t.subject = nil
	if !t.registry.Unregister(t) {
		slog.Error("statistics tracker torn down while not registered", "tracker", t.id, "cache", name)
		return ErrNotRegistered
	}
	return nil
}

func (t *Tracker) OnAccessed(kind AccessKind) {
	switch kind {
	case AccessHit:
		t.counters.IncrementHit()
	case AccessStaleHit:
		t.counters.IncrementStaleHit()
	case AccessMiss:
		t.counters.IncrementMiss()
	}
}

func (t *Tracker) OnEntryAdded()   { t.counters.RecordEntryAdded() }
func (t *Tracker) OnEntryRemoved() { t.counters.RecordEntryRemoved() }
func (t *Tracker) OnEntryUpdated() { t.counters.RecordEntryUpdated() }

// OnFlushed rolls the current period unless the flush is nested inside
// another one, in which case the enclosing flush event does the rolling.
func (t *Tracker) OnFlushed(ev FlushEvent) {
	if ev.Nested() {
		return
	}
	reason := ev.Reason()
	t.counters.Flush(reason)
	slog.Debug("cache statistics flushed", "cache", t.Name(), "reason", reason)
}

// Subject returns the bound subject, nil once torn down.
func (t *Tracker) Subject() Subject {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.subject
}

// Name is the subject's name, empty when detached.
func (t *Tracker) Name() string {
	return subjectName(t.Subject())
}

// Counters exposes the read accessors of the underlying counter set.
func (t *Tracker) Counters() *CounterSet {
	return &t.counters
}

func (t *Tracker) Snapshot() Snapshot {
	return t.counters.Snapshot()
}

// Describe renders current / cumulative counters for diagnostics.
func (t *Tracker) Describe() string {
	s := t.counters.Snapshot()
	name := t.Name()
	if name == "" {
		name = fmt.Sprintf("tracker#%d", t.id)
	}
	return fmt.Sprintf("%s: hit = %d / %d, stale hit = %d / %d, miss = %d / %d, flush = %d, entries (added, removed, updated) = %d, %d, %d",
		name,
		s.Hits, s.HitsCumulative,
		s.StaleHits, s.StaleHitsCumulative,
		s.Misses, s.MissesCumulative,
		s.FlushCount,
		s.EntriesAdded, s.EntriesRemoved, s.EntriesUpdated)
}

func (t *Tracker) String() string {
	return t.Describe()
}

func subjectName(s Subject) string {
	if s == nil {
		return ""
	}
	return s.Name()
}
