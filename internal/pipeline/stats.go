package pipeline

import (
	"slices"
	"sync"
	"time"
)

type observation struct {
	at       time.Time
	duration time.Duration
	failed   bool
}

// StatsSnapshot aggregates the conversions seen within the stats window.
type StatsSnapshot struct {
	Conversions int     `json:"conversions"`
	Failures    int     `json:"failures"`
	MinMs       int64   `json:"min_ms"`
	MaxMs       int64   `json:"max_ms"`
	AvgMs       float64 `json:"avg_ms"`
	P50Ms       float64 `json:"p50_ms"`
	P95Ms       float64 `json:"p95_ms"`
	P99Ms       float64 `json:"p99_ms"`
}

// Stats keeps conversion latencies and outcomes over a rolling window.
type Stats struct {
	mu     sync.Mutex
	obs    []observation
	window time.Duration
}

func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{obs: make([]observation, 0, 128), window: window}
}

// Observe records one conversion that began at start.
func (s *Stats) Observe(start time.Time, err error) {
	s.record(time.Since(start), err != nil)
}

func (s *Stats) record(d time.Duration, failed bool) {
	if d < 0 {
		d = 0
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(now)
	s.obs = append(s.obs, observation{at: now, duration: d, failed: failed})
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire(time.Now())
	if len(s.obs) == 0 {
		return StatsSnapshot{}
	}

	ms := make([]int64, len(s.obs))
	var snap StatsSnapshot
	var total int64
	for i, o := range s.obs {
		ms[i] = o.duration.Milliseconds()
		total += ms[i]
		if o.failed {
			snap.Failures++
		}
	}
	slices.Sort(ms)

	snap.Conversions = len(ms)
	snap.MinMs = ms[0]
	snap.MaxMs = ms[len(ms)-1]
	snap.AvgMs = float64(total) / float64(len(ms))
	snap.P50Ms = quantile(ms, 0.50)
	snap.P95Ms = quantile(ms, 0.95)
	snap.P99Ms = quantile(ms, 0.99)
	return snap
}

// expire drops observations older than the window. Callers hold mu.
func (s *Stats) expire(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.obs) && s.obs[i].at.Before(cutoff) {
		i++
	}
	s.obs = slices.Delete(s.obs, 0, i)
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []int64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return float64(sorted[len(sorted)-1])
	}
	frac := pos - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[lo+1]-sorted[lo])
}
