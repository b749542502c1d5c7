package batch

import (
	"slices"
	"time"
)

// Stats accumulates per-test durations for a batch
type Stats struct {
	Count     int
	Durations []time.Duration // For percentile calculation
	Total     time.Duration
	min       time.Duration
	max       time.Duration
}

// NewStats creates a new Stats instance
func NewStats(capacity int) *Stats {
	return &Stats{
		Durations: make([]time.Duration, 0, capacity),
		min:       -1,
		max:       -1,
	}
}

// Add records one test duration
func (s *Stats) Add(d time.Duration) {
	s.Count++
	s.Total += d
	s.Durations = append(s.Durations, d)

	if s.min == -1 || d < s.min {
		s.min = d
	}
	if s.max == -1 || d > s.max {
		s.max = d
	}
}

// Avg returns the mean duration
func (s *Stats) Avg() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Min returns the shortest duration, or 0 if nothing was recorded
func (s *Stats) Min() time.Duration {
	if s.min == -1 {
		return 0
	}
	return s.min
}

// Max returns the longest duration, or 0 if nothing was recorded
func (s *Stats) Max() time.Duration {
	if s.max == -1 {
		return 0
	}
	return s.max
}

// Percentile returns the p-th percentile using linear interpolation
func (s *Stats) Percentile(p float64) time.Duration {
	if len(s.Durations) == 0 {
		return 0
	}

	sorted := slices.Clone(s.Durations)
	slices.Sort(sorted)

	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return time.Duration(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}

// Latency is the serializable view of Stats
type Latency struct {
	MinMs float64 `json:"min_ms" yaml:"min_ms"`
	AvgMs float64 `json:"avg_ms" yaml:"avg_ms"`
	MaxMs float64 `json:"max_ms" yaml:"max_ms"`
	P50Ms float64 `json:"p50_ms" yaml:"p50_ms"`
	P95Ms float64 `json:"p95_ms" yaml:"p95_ms"`
	P99Ms float64 `json:"p99_ms" yaml:"p99_ms"`
}

// Latency summarizes the recorded durations
func (s *Stats) Latency() Latency {
	return Latency{
		MinMs: millis(s.Min()),
		AvgMs: millis(s.Avg()),
		MaxMs: millis(s.Max()),
		P50Ms: millis(s.Percentile(50)),
		P95Ms: millis(s.Percentile(95)),
		P99Ms: millis(s.Percentile(99)),
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
