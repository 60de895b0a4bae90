// Package report turns the live statistics trackers into the rows an
// admin page displays: one table per cache, labels and formatted values.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"cachestats/internal/statistics"
)

type Row struct {
	Label   string `json:"label"`
	Value   string `json:"value"`
	Details string `json:"details,omitempty"`
}

type CacheReport struct {
	ID       uint64              `json:"id"`
	Name     string              `json:"name"`
	Caption  string              `json:"caption,omitempty"`
	Rows     []Row               `json:"rows"`
	Snapshot statistics.Snapshot `json:"snapshot"`
	Ratios   statistics.Ratios   `json:"ratios"`
}

type Report struct {
	Title       string        `json:"title"`
	Count       int           `json:"count"`
	GeneratedAt time.Time     `json:"generated_at"`
	Caches      []CacheReport `json:"caches"`
}

// Sized is implemented by subjects that can count their entries.
// Capacity 0 means unbounded.
type Sized interface {
	Size(ctx context.Context) (int, error)
	Capacity() int
}

type described interface {
	Description() string
}

// Build reports every tracker still bound to a cache.
func Build(ctx context.Context, reg *statistics.Registry) Report {
	var caches []CacheReport
	for _, t := range reg.SnapshotAll() {
		if cr, ok := ForTracker(ctx, t); ok {
			caches = append(caches, cr)
		}
	}
	return Report{
		Title:       fmt.Sprintf("Cache statistics (%d)", len(caches)),
		Count:       len(caches),
		GeneratedAt: time.Now(),
		Caches:      caches,
	}
}

// Find returns the first report whose cache is called name.
func Find(ctx context.Context, reg *statistics.Registry, name string) (CacheReport, bool) {
	for _, t := range reg.SnapshotAll() {
		if t.Name() == name {
			return ForTracker(ctx, t)
		}
	}
	return CacheReport{}, false
}

// ForTracker reports false for a tracker whose cache is gone. Subjects
// that know their size get an object count row ahead of the counters.
func ForTracker(ctx context.Context, t *statistics.Tracker) (CacheReport, bool) {
	subject := t.Subject()
	if subject == nil || subject.Name() == "" {
		return CacheReport{}, false
	}
	s := t.Snapshot()
	cr := CacheReport{
		ID:       t.ID(),
		Name:     subject.Name(),
		Rows:     Rows(s),
		Snapshot: s,
		Ratios:   statistics.RatiosOf(s),
	}
	if sz, ok := subject.(Sized); ok {
		cr.Rows = append([]Row{objectCount(ctx, cr.Name, sz)}, cr.Rows...)
	}
	if d, ok := subject.(described); ok {
		cr.Caption = d.Description()
	}
	return cr, true
}

func objectCount(ctx context.Context, name string, sz Sized) Row {
	row := Row{Label: "Object count", Details: "unbounded"}
	if c := sz.Capacity(); c > 0 {
		row.Details = "capacity " + humanize.Comma(int64(c))
	}
	n, err := sz.Size(ctx)
	if err != nil {
		slog.Warn("Cache size unavailable", "cache", name, "error", err)
		row.Value = "unknown"
		return row
	}
	row.Value = humanize.Comma(int64(n))
	return row
}

// Rows lays out a snapshot as label / value / details triples.
func Rows(s statistics.Snapshot) []Row {
	totals := s.Totals()
	r := statistics.RatiosOf(s)
	rows := []Row{
		{Label: "Cache hits", Value: humanize.Comma(totals.Hits), Details: percent(r.Hit)},
		{Label: "Cache stale hits", Value: humanize.Comma(totals.StaleHits), Details: percent(r.StaleHit)},
		{Label: "Cache misses", Value: humanize.Comma(totals.Misses), Details: percent(r.Miss)},
		{Label: "Flush count", Value: humanize.Comma(s.FlushCount), Details: s.LastFlushReason},
		{Label: "Entries added", Value: humanize.Comma(s.EntriesAdded)},
		{Label: "Entries removed", Value: humanize.Comma(s.EntriesRemoved)},
		{Label: "Entries updated", Value: humanize.Comma(s.EntriesUpdated)},
	}
	return rows
}

func percent(ratio float64) string {
	return strconv.FormatFloat(ratio*100, 'f', 1, 64) + "%"
}
