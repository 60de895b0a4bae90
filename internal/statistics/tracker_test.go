package statistics

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

type namedSubject string

func (n namedSubject) Name() string { return string(n) }

func TestTrackerEndToEndScenario(t *testing.T) {
	reg := NewRegistry()
	tr := NewTracker(reg)
	if err := tr.Initialize(namedSubject("users")); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}

	for i := 0; i < 7; i++ {
		tr.OnAccessed(AccessHit)
	}
	tr.OnAccessed(AccessStaleHit)
	tr.OnAccessed(AccessStaleHit)
	tr.OnAccessed(AccessMiss)
	tr.OnFlushed(FlushEvent{Kind: FlushCache, At: time.Now()})
	for i := 0; i < 3; i++ {
		tr.OnAccessed(AccessHit)
	}

	s := tr.Snapshot()
	if s.Hits != 3 || s.HitsCumulative != 7 {
		t.Fatalf("hits=%d/%d want=3/7", s.Hits, s.HitsCumulative)
	}
	if s.StaleHits != 0 || s.StaleHitsCumulative != 2 {
		t.Fatalf("stale hits=%d/%d want=0/2", s.StaleHits, s.StaleHitsCumulative)
	}
	if s.Misses != 0 || s.MissesCumulative != 1 {
		t.Fatalf("misses=%d/%d want=0/1", s.Misses, s.MissesCumulative)
	}
	if s.FlushCount != 1 {
		t.Fatalf("FlushCount=%d want=1", s.FlushCount)
	}

	r := RatiosOf(tr)
	for _, c := range []struct {
		name string
		got  float64
		want float64
	}{
		{"hit", r.Hit, 10.0 / 13.0},
		{"stale hit", r.StaleHit, 2.0 / 13.0},
		{"miss", r.Miss, 1.0 / 13.0},
	} {
		if math.Abs(c.got-c.want) > 1e-12 {
			t.Fatalf("%s ratio=%v want=%v", c.name, c.got, c.want)
		}
	}
}

func TestTrackerIgnoresUnknownAccessKind(t *testing.T) {
	tr := NewTracker(NewRegistry())
	tr.OnAccessed(AccessKind(42))
	tr.OnAccessed(0)

	if got := tr.Snapshot().Totals().Accesses(); got != 0 {
		t.Fatalf("accesses=%d want=0", got)
	}
}

func TestTrackerSuppressesNestedFlush(t *testing.T) {
	tr := NewTracker(NewRegistry())
	tr.OnAccessed(AccessHit)

	tr.OnFlushed(FlushEvent{Kind: FlushEntry, Key: "a", Origin: NestedOrigin})
	s := tr.Snapshot()
	if s.FlushCount != 0 || s.Hits != 1 || s.HitsCumulative != 0 {
		t.Fatalf("nested flush changed counters: %+v", s)
	}

	tr.OnFlushed(FlushEvent{Kind: FlushGroup, Group: "g"})
	s = tr.Snapshot()
	if s.FlushCount != 1 || s.Hits != 0 || s.HitsCumulative != 1 {
		t.Fatalf("primary flush did not roll: %+v", s)
	}
	if s.LastFlushReason != "group g" {
		t.Fatalf("LastFlushReason=%q want=%q", s.LastFlushReason, "group g")
	}

	tr.OnAccessed(AccessMiss)
	tr.OnFlushed(FlushEvent{Kind: FlushEntry, Key: "b", Origin: NestedOrigin})
	tr.OnFlushed(FlushEvent{Kind: FlushEntry, Key: "b", Origin: "admin"})
	s = tr.Snapshot()
	if s.FlushCount != 2 || s.MissesCumulative != 1 {
		t.Fatalf("primary entry flush after nested one: %+v", s)
	}
	if s.LastFlushReason != "entry b / admin" {
		t.Fatalf("LastFlushReason=%q want=%q", s.LastFlushReason, "entry b / admin")
	}
}

func TestTrackerLifecycleErrors(t *testing.T) {
	reg := NewRegistry()
	tr := NewTracker(reg)

	if err := tr.Teardown(); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("Teardown() before Initialize error=%v want=%v", err, ErrNotRegistered)
	}
	if err := tr.Initialize(namedSubject("c1")); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if err := tr.Initialize(namedSubject("c2")); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second Initialize() error=%v want=%v", err, ErrAlreadyInitialized)
	}
	if got := tr.Name(); got != "c1" {
		t.Fatalf("Name()=%q want=c1", got)
	}
	if got := reg.Len(); got != 1 {
		t.Fatalf("Len()=%d want=1", got)
	}

	if err := tr.Teardown(); err != nil {
		t.Fatalf("Teardown() error: %v", err)
	}
	if tr.Subject() != nil {
		t.Fatalf("Subject() still bound after Teardown")
	}
	if reg.Contains(tr) {
		t.Fatalf("registry still contains torn down tracker")
	}
	if err := tr.Teardown(); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("second Teardown() error=%v want=%v", err, ErrNotRegistered)
	}
	if got := reg.Len(); got != 0 {
		t.Fatalf("Len()=%d want=0", got)
	}
}

func TestTrackerDescribe(t *testing.T) {
	tr := NewTracker(NewRegistry())
	if err := tr.Initialize(namedSubject("pages")); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	tr.OnAccessed(AccessHit)
	tr.OnFlushed(FlushEvent{Kind: FlushPattern, Pattern: "user:"})
	tr.OnAccessed(AccessHit)
	tr.OnEntryAdded()

	want := "pages: hit = 1 / 1, stale hit = 0 / 0, miss = 0 / 0, flush = 1, entries (added, removed, updated) = 1, 0, 0"
	if got := tr.Describe(); got != want {
		t.Fatalf("Describe()=%q want=%q", got, want)
	}

	_ = tr.Teardown()
	if got := tr.String(); !strings.HasPrefix(got, "tracker#") {
		t.Fatalf("String() of detached tracker=%q want tracker# prefix", got)
	}
}

func TestFlushEventReason(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		ev   FlushEvent
		want string
	}{
		{name: "wide", ev: FlushEvent{Kind: FlushCache, At: at}, want: "wide 2024-03-01T12:00:00Z"},
		{name: "entry", ev: FlushEvent{Kind: FlushEntry, Key: "k", Origin: "api"}, want: "entry k / api"},
		{name: "group", ev: FlushEvent{Kind: FlushGroup, Group: "news"}, want: "group news"},
		{name: "pattern", ev: FlushEvent{Kind: FlushPattern, Pattern: "user:"}, want: "pattern user:"},
		{name: "scope", ev: FlushEvent{Kind: FlushScope, Scope: ScopeSession}, want: "scope session"},
		{name: "unknown scope", ev: FlushEvent{Kind: FlushScope, Scope: Scope(9)}, want: "scope scope(9)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.Reason(); got != tt.want {
				t.Fatalf("Reason()=%q want=%q", got, tt.want)
			}
		})
	}
}

func TestParseFlushKindAndScope(t *testing.T) {
	for _, k := range []FlushKind{FlushCache, FlushEntry, FlushGroup, FlushPattern, FlushScope} {
		got, ok := ParseFlushKind(k.String())
		if !ok || got != k {
			t.Fatalf("ParseFlushKind(%q)=%v,%v want=%v,true", k.String(), got, ok, k)
		}
	}
	if _, ok := ParseFlushKind("everything"); ok {
		t.Fatalf("ParseFlushKind(everything) ok=true want=false")
	}
	if got, ok := ParseScope("application"); !ok || got != ScopeApplication {
		t.Fatalf("ParseScope(application)=%v,%v", got, ok)
	}
	if _, ok := ParseScope(""); ok {
		t.Fatalf("ParseScope(\"\") ok=true want=false")
	}
}
