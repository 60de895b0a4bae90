package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"cachestats/internal/statistics"
)

// Collector exports the counters of every tracker in a registry at
// scrape time.
type Collector struct {
	registry *statistics.Registry

	accesses *prometheus.Desc
	current  *prometheus.Desc
	flushes  *prometheus.Desc
	entries  *prometheus.Desc
	hitRatio *prometheus.Desc
	trackers *prometheus.Desc
}

func NewCollector(registry *statistics.Registry) *Collector {
	labels := []string{"cache", "tracker"}
	return &Collector{
		registry: registry,
		accesses: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "accesses_total"),
			"Lifetime cache accesses by kind.",
			append(labels, "kind"), nil,
		),
		current: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "period_accesses"),
			"Cache accesses since the last flush by kind.",
			append(labels, "kind"), nil,
		),
		flushes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "flushes_observed_total"),
			"Flushes rolled by the tracker.",
			labels, nil,
		),
		entries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "entries_total"),
			"Entry lifecycle events.",
			append(labels, "event"), nil,
		),
		hitRatio: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "hit_ratio"),
			"Share of lifetime accesses by kind.",
			append(labels, "kind"), nil,
		),
		trackers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "trackers"),
			"Live statistics trackers.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.accesses
	ch <- c.current
	ch <- c.flushes
	ch <- c.entries
	ch <- c.hitRatio
	ch <- c.trackers
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	trackers := c.registry.SnapshotAll()
	ch <- prometheus.MustNewConstMetric(c.trackers, prometheus.GaugeValue, float64(len(trackers)))

	for _, t := range trackers {
		name := t.Name()
		if name == "" {
			continue
		}
		id := strconv.FormatUint(t.ID(), 10)
		s := t.Snapshot()
		totals := s.Totals()
		ratios := statistics.RatiosOf(s)

		for _, m := range []struct {
			kind    string
			total   int64
			current int64
			ratio   float64
		}{
			{"hit", totals.Hits, s.Hits, ratios.Hit},
			{"stale_hit", totals.StaleHits, s.StaleHits, ratios.StaleHit},
			{"miss", totals.Misses, s.Misses, ratios.Miss},
		} {
			ch <- prometheus.MustNewConstMetric(c.accesses, prometheus.CounterValue, float64(m.total), name, id, m.kind)
			ch <- prometheus.MustNewConstMetric(c.current, prometheus.GaugeValue, float64(m.current), name, id, m.kind)
			ch <- prometheus.MustNewConstMetric(c.hitRatio, prometheus.GaugeValue, m.ratio, name, id, m.kind)
		}
		ch <- prometheus.MustNewConstMetric(c.flushes, prometheus.CounterValue, float64(s.FlushCount), name, id)
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.CounterValue, float64(s.EntriesAdded), name, id, "added")
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.CounterValue, float64(s.EntriesRemoved), name, id, "removed")
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.CounterValue, float64(s.EntriesUpdated), name, id, "updated")
	}
}
