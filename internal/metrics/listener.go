package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"cachestats/internal/statistics"
)

// Listener mirrors the events of one cache into CacheEvents and
// CacheFlushes. Unlike a Tracker it keeps no state of its own.
type Listener struct {
	mu   sync.RWMutex
	name string

	hits, staleHits, misses prometheus.Counter
	added, removed, updated prometheus.Counter
	initialized, detached   bool
}

func NewListener() *Listener {
	return &Listener{}
}

func (l *Listener) Initialize(subject statistics.Subject) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.initialized {
		return statistics.ErrAlreadyInitialized
	}
	l.initialized = true
	l.name = subject.Name()
	l.hits = CacheEvents.WithLabelValues(l.name, "hit")
	l.staleHits = CacheEvents.WithLabelValues(l.name, "stale_hit")
	l.misses = CacheEvents.WithLabelValues(l.name, "miss")
	l.added = CacheEvents.WithLabelValues(l.name, "added")
	l.removed = CacheEvents.WithLabelValues(l.name, "removed")
	l.updated = CacheEvents.WithLabelValues(l.name, "updated")
	return nil
}

func (l *Listener) Teardown() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized || l.detached {
		return statistics.ErrNotRegistered
	}
	l.detached = true
	return nil
}

func (l *Listener) OnAccessed(kind statistics.AccessKind) {
	var c prometheus.Counter
	l.mu.RLock()
	switch kind {
	case statistics.AccessHit:
		c = l.hits
	case statistics.AccessStaleHit:
		c = l.staleHits
	case statistics.AccessMiss:
		c = l.misses
	}
	l.mu.RUnlock()
	if c != nil {
		c.Inc()
	}
}

func (l *Listener) OnEntryAdded()   { l.inc(func() prometheus.Counter { return l.added }) }
func (l *Listener) OnEntryRemoved() { l.inc(func() prometheus.Counter { return l.removed }) }
func (l *Listener) OnEntryUpdated() { l.inc(func() prometheus.Counter { return l.updated }) }

func (l *Listener) OnFlushed(ev statistics.FlushEvent) {
	origin := "primary"
	if ev.Nested() {
		origin = "nested"
	}
	l.mu.RLock()
	name := l.name
	ok := l.initialized
	l.mu.RUnlock()
	if ok {
		CacheFlushes.WithLabelValues(name, ev.Kind.String(), origin).Inc()
	}
}

func (l *Listener) inc(pick func() prometheus.Counter) {
	l.mu.RLock()
	c := pick()
	l.mu.RUnlock()
	if c != nil {
		c.Inc()
	}
}
