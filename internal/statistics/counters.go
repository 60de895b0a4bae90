package statistics

import (
	"sync"
	"sync/atomic"
	"time"
)

// CounterSet holds the access and lifecycle counters of one observed cache.
// Increments are lock-free; Flush takes a short lock so that two flushes
// never interleave their swap-and-add sequences.
type CounterSet struct {
	hits      int64
	staleHits int64
	misses    int64

	hitsCumulative      int64
	staleHitsCumulative int64
	missesCumulative    int64

	flushCount int64

	entriesAdded   int64
	entriesRemoved int64
	entriesUpdated int64

	flushMu         sync.Mutex
	lastFlushReason string
	lastFlushAt     time.Time
}

// Snapshot is a plain copy of a CounterSet. Fields read at slightly
// different instants may mix pre- and post-flush values.
type Snapshot struct {
	Hits      int64 `json:"hits"`
	StaleHits int64 `json:"stale_hits"`
	Misses    int64 `json:"misses"`

	HitsCumulative      int64 `json:"hits_cumulative"`
	StaleHitsCumulative int64 `json:"stale_hits_cumulative"`
	MissesCumulative    int64 `json:"misses_cumulative"`

	FlushCount int64 `json:"flush_count"`

	EntriesAdded   int64 `json:"entries_added"`
	EntriesRemoved int64 `json:"entries_removed"`
	EntriesUpdated int64 `json:"entries_updated"`

	LastFlushReason string    `json:"last_flush_reason,omitempty"`
	LastFlushAt     time.Time `json:"last_flush_at,omitempty"`
}

// Totals is the lifetime view of the access counters.
type Totals struct {
	Hits      int64 `json:"hits"`
	StaleHits int64 `json:"stale_hits"`
	Misses    int64 `json:"misses"`
}

// Accesses returns hits + stale hits + misses.
func (t Totals) Accesses() int64 {
	return t.Hits + t.StaleHits + t.Misses
}

// Snapshot makes a frozen snapshot a Source of itself.
func (s Snapshot) Snapshot() Snapshot { return s }

// Totals folds current and cumulative counters together.
func (s Snapshot) Totals() Totals {
	return Totals{
		Hits:      s.Hits + s.HitsCumulative,
		StaleHits: s.StaleHits + s.StaleHitsCumulative,
		Misses:    s.Misses + s.MissesCumulative,
	}
}

func NewCounterSet() *CounterSet {
	return &CounterSet{}
}

func (c *CounterSet) IncrementHit() {
	atomic.AddInt64(&c.hits, 1)
}

func (c *CounterSet) IncrementStaleHit() {
	atomic.AddInt64(&c.staleHits, 1)
}

func (c *CounterSet) IncrementMiss() {
	atomic.AddInt64(&c.misses, 1)
}

func (c *CounterSet) RecordEntryAdded() {
	atomic.AddInt64(&c.entriesAdded, 1)
}

func (c *CounterSet) RecordEntryRemoved() {
	atomic.AddInt64(&c.entriesRemoved, 1)
}

func (c *CounterSet) RecordEntryUpdated() {
	atomic.AddInt64(&c.entriesUpdated, 1)
}

// Flush closes the current period: every current counter is swapped to
// zero and the swapped value is added to its cumulative counterpart.
// An increment racing the swap lands either before it (and is rolled)
// or after it (and stays current), never both.
func (c *CounterSet) Flush(reason string) {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	atomic.AddInt64(&c.flushCount, 1)

	atomic.AddInt64(&c.hitsCumulative, atomic.SwapInt64(&c.hits, 0))
	atomic.AddInt64(&c.staleHitsCumulative, atomic.SwapInt64(&c.staleHits, 0))
	atomic.AddInt64(&c.missesCumulative, atomic.SwapInt64(&c.misses, 0))

	c.lastFlushReason = reason
	c.lastFlushAt = time.Now()
}

func (c *CounterSet) Hits() int64      { return atomic.LoadInt64(&c.hits) }
func (c *CounterSet) StaleHits() int64 { return atomic.LoadInt64(&c.staleHits) }
func (c *CounterSet) Misses() int64    { return atomic.LoadInt64(&c.misses) }

func (c *CounterSet) HitsCumulative() int64      { return atomic.LoadInt64(&c.hitsCumulative) }
func (c *CounterSet) StaleHitsCumulative() int64 { return atomic.LoadInt64(&c.staleHitsCumulative) }
func (c *CounterSet) MissesCumulative() int64    { return atomic.LoadInt64(&c.missesCumulative) }

func (c *CounterSet) FlushCount() int64 { return atomic.LoadInt64(&c.flushCount) }

func (c *CounterSet) EntriesAdded() int64   { return atomic.LoadInt64(&c.entriesAdded) }
func (c *CounterSet) EntriesRemoved() int64 { return atomic.LoadInt64(&c.entriesRemoved) }
func (c *CounterSet) EntriesUpdated() int64 { return atomic.LoadInt64(&c.entriesUpdated) }

// LastFlush returns the reason and time of the most recent flush.
func (c *CounterSet) LastFlush() (string, time.Time) {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()
	return c.lastFlushReason, c.lastFlushAt
}

// Snapshot reads every counter without blocking increments.
func (c *CounterSet) Snapshot() Snapshot {
	reason, at := c.LastFlush()
	return Snapshot{
		Hits:                c.Hits(),
		StaleHits:           c.StaleHits(),
		Misses:              c.Misses(),
		HitsCumulative:      c.HitsCumulative(),
		StaleHitsCumulative: c.StaleHitsCumulative(),
		MissesCumulative:    c.MissesCumulative(),
		FlushCount:          c.FlushCount(),
		EntriesAdded:        c.EntriesAdded(),
		EntriesRemoved:      c.EntriesRemoved(),
		EntriesUpdated:      c.EntriesUpdated(),
		LastFlushReason:     reason,
		LastFlushAt:         at,
	}
}
