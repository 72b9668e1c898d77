// Package observability provides latency accounting for benchmark layouts.
package observability

import (
	"math"
	"sort"
	"sync"
	"time"
)

// LatencyStats accumulates per-call latencies and correctness mismatches for
// one layout.
//
// The mean is always the accumulated total divided by the number of
// latencies actually recorded, never by a configured sample count.
type LatencyStats struct {
	mu         sync.RWMutex
	name       string
	samples    []time.Duration
	total      time.Duration
	min        time.Duration
	max        time.Duration
	mismatches int64
}

// LatencySnapshot is an immutable copy of LatencyStats.
type LatencySnapshot struct {
	Name       string        `json:"name"`
	Count      int           `json:"count"`
	Total      time.Duration `json:"total_ns"`
	Min        time.Duration `json:"min_ns"`
	Max        time.Duration `json:"max_ns"`
	P50        time.Duration `json:"p50_ns"`
	P95        time.Duration `json:"p95_ns"`
	P99        time.Duration `json:"p99_ns"`
	MeanMillis float64       `json:"mean_ms"`
	Mismatches int64         `json:"mismatches"`
}

// HasSamples reports whether at least one latency was recorded.
func (s LatencySnapshot) HasSamples() bool {
	return s.Count > 0
}

// NewLatencyStats creates an empty accumulator.
// expected is a capacity hint for the number of samples.
func NewLatencyStats(name string, expected int) *LatencyStats {
	if expected < 0 {
		expected = 0
	}
	return &LatencyStats{
		name:    name,
		samples: make([]time.Duration, 0, expected),
	}
}

// Name returns the layout name this accumulator belongs to.
func (l *LatencyStats) Name() string {
	return l.name
}

// Record adds one latency. Negative values are clamped to zero.
func (l *LatencyStats) Record(d time.Duration) {
	if d < 0 {
		d = 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.samples) == 0 || d < l.min {
		l.min = d
	}
	if d > l.max {
		l.max = d
	}
	l.total += d
	l.samples = append(l.samples, d)
}

// RecordMismatch counts a lookup that succeeded but returned the wrong answer.
func (l *LatencyStats) RecordMismatch() {
	l.mu.Lock()
	l.mismatches++
	l.mu.Unlock()
}

// Count returns the number of recorded latencies.
func (l *LatencyStats) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.samples)
}

// Total returns the sum of recorded latencies.
func (l *LatencyStats) Total() time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// Mismatches returns the mismatch counter.
func (l *LatencyStats) Mismatches() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mismatches
}

// MeanMillis returns the average latency in milliseconds.
// ok is false when nothing has been recorded.
func (l *LatencyStats) MeanMillis() (mean float64, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return meanMillis(l.total, len(l.samples))
}

func meanMillis(total time.Duration, count int) (float64, bool) {
	if count == 0 {
		return 0, false
	}
	return float64(total) / float64(time.Millisecond) / float64(count), true
}

// Snapshot computes percentiles and returns a copy of the current state.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	l.mu.RLock()
	sorted := make([]time.Duration, len(l.samples))
	copy(sorted, l.samples)
	snap := LatencySnapshot{
		Name:       l.name,
		Count:      len(l.samples),
		Total:      l.total,
		Min:        l.min,
		Max:        l.max,
		Mismatches: l.mismatches,
	}
	l.mu.RUnlock()

	snap.MeanMillis, _ = meanMillis(snap.Total, snap.Count)

	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	snap.P50 = percentile(sorted, 50)
	snap.P95 = percentile(sorted, 95)
	snap.P99 = percentile(sorted, 99)
	return snap
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
