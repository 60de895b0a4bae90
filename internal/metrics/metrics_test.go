package metrics

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"cachestats/internal/statistics"
)

type subject string

func (s subject) Name() string { return string(s) }

func TestListenerMirrorsEvents(t *testing.T) {
	l := NewListener()
	if err := l.Initialize(subject("mirror")); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if err := l.Initialize(subject("mirror")); !errors.Is(err, statistics.ErrAlreadyInitialized) {
		t.Fatalf("second Initialize() error=%v", err)
	}

	l.OnAccessed(statistics.AccessHit)
	l.OnAccessed(statistics.AccessHit)
	l.OnAccessed(statistics.AccessMiss)
	l.OnAccessed(statistics.AccessKind(77))
	l.OnEntryAdded()
	l.OnFlushed(statistics.FlushEvent{Kind: statistics.FlushEntry, Origin: statistics.NestedOrigin})
	l.OnFlushed(statistics.FlushEvent{Kind: statistics.FlushGroup, Group: "g"})

	if got := testutil.ToFloat64(CacheEvents.WithLabelValues("mirror", "hit")); got != 2 {
		t.Fatalf("hit events=%v want=2", got)
	}
	if got := testutil.ToFloat64(CacheEvents.WithLabelValues("mirror", "miss")); got != 1 {
		t.Fatalf("miss events=%v want=1", got)
	}
	if got := testutil.ToFloat64(CacheEvents.WithLabelValues("mirror", "added")); got != 1 {
		t.Fatalf("added events=%v want=1", got)
	}
	if got := testutil.ToFloat64(CacheFlushes.WithLabelValues("mirror", "entry", "nested")); got != 1 {
		t.Fatalf("nested flushes=%v want=1", got)
	}
	if got := testutil.ToFloat64(CacheFlushes.WithLabelValues("mirror", "group", "primary")); got != 1 {
		t.Fatalf("primary group flushes=%v want=1", got)
	}

	if err := l.Teardown(); err != nil {
		t.Fatalf("Teardown() error: %v", err)
	}
	if err := l.Teardown(); !errors.Is(err, statistics.ErrNotRegistered) {
		t.Fatalf("second Teardown() error=%v", err)
	}
}

func TestCollectorExportsRegistry(t *testing.T) {
	reg := statistics.NewRegistry()
	tr := statistics.NewTracker(reg)
	if err := tr.Initialize(subject("orders")); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	tr.OnAccessed(statistics.AccessHit)
	tr.OnAccessed(statistics.AccessHit)
	tr.OnAccessed(statistics.AccessMiss)
	tr.OnFlushed(statistics.FlushEvent{Kind: statistics.FlushPattern, Pattern: "x"})
	tr.OnAccessed(statistics.AccessHit)

	c := NewCollector(reg)
	if got := testutil.CollectAndCount(c, "cachestats_cache_accesses_total"); got != 3 {
		t.Fatalf("accesses series=%d want=3", got)
	}

	expected := `
# HELP cachestats_cache_flushes_observed_total Flushes rolled by the tracker.
# TYPE cachestats_cache_flushes_observed_total counter
cachestats_cache_flushes_observed_total{cache="orders",tracker="` + strconv.FormatUint(tr.ID(), 10) + `"} 1
# HELP cachestats_trackers Live statistics trackers.
# TYPE cachestats_trackers gauge
cachestats_trackers 1
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "cachestats_cache_flushes_observed_total", "cachestats_trackers"); err != nil {
		t.Fatalf("CollectAndCompare() error: %v", err)
	}

	_ = tr.Teardown()
	if got := testutil.CollectAndCount(c, "cachestats_cache_accesses_total"); got != 0 {
		t.Fatalf("accesses series after teardown=%d want=0", got)
	}
}
