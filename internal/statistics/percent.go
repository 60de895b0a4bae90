package statistics

// Source is anything that can produce a counter snapshot.
type Source interface {
	Snapshot() Snapshot
}

// Ratios are the shares of lifetime accesses per access kind.
type Ratios struct {
	Hit      float64 `json:"hit"`
	StaleHit float64 `json:"stale_hit"`
	Miss     float64 `json:"miss"`
}

func percentage(number, total int64) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(number) / float64(total)
}

// RatiosOf computes all three ratios from one snapshot so they are
// mutually consistent.
func RatiosOf(src Source) Ratios {
	t := src.Snapshot().Totals()
	total := t.Accesses()
	return Ratios{
		Hit:      percentage(t.Hits, total),
		StaleHit: percentage(t.StaleHits, total),
		Miss:     percentage(t.Misses, total),
	}
}

// HitRatio is the share of accesses that found a fresh entry.
func HitRatio(src Source) float64 {
	return RatiosOf(src).Hit
}

// StaleHitRatio is the share of accesses that found a stale entry.
func StaleHitRatio(src Source) float64 {
	return RatiosOf(src).StaleHit
}

// MissRatio is the share of accesses that found nothing.
func MissRatio(src Source) float64 {
	return RatiosOf(src).Miss
}
