// Package clock provides the process-wide monotonic nanosecond clock
// and latency-measurement helpers used across the hot path. A single
// epoch, established on first use, anchors all Nanos values for the
// life of the process — the same anchoring scheme as the reference
// timer, adapted to time.Now()'s monotonic reading instead of
// std::time::Instant.
package clock

import (
	"sync"
	"time"
)

var (
	epochOnce sync.Once
	epoch     time.Time
)

func getEpoch() time.Time {
	epochOnce.Do(func() {
		epoch = time.Now()
	})
	return epoch
}

// Nanos is a nanosecond timestamp relative to the process epoch.
type Nanos uint64

// Now returns the current time as nanoseconds since the process epoch.
func Now() Nanos {
	return Nanos(time.Since(getEpoch()).Nanoseconds())
}

// Since returns the elapsed nanoseconds between start and now.
func Since(start Nanos) uint64 {
	now := Now()
	if now < start {
		return 0
	}
	return uint64(now - start)
}

// LatencyStats accumulates count/sum/min/max for a stream of latency
// samples in nanoseconds, without retaining the individual samples.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// NewLatencyStats returns an empty accumulator.
func NewLatencyStats() *LatencyStats {
	return &LatencyStats{min: ^uint64(0)}
}

// Record adds one latency sample in nanoseconds.
func (s *LatencyStats) Record(nanos uint64) {
	s.count++
	s.sum += nanos
	if nanos < s.min {
		s.min = nanos
	}
	if nanos > s.max {
		s.max = nanos
	}
}

// Count returns the number of recorded samples.
func (s *LatencyStats) Count() uint64 { return s.count }

// Mean returns the average latency in nanoseconds, or 0 if no samples.
func (s *LatencyStats) Mean() float64 {
	if s.count == 0 {
		return 0
	}
	return float64(s.sum) / float64(s.count)
}

// Min returns the minimum recorded latency, or ^uint64(0) if empty.
func (s *LatencyStats) Min() uint64 { return s.min }

// Max returns the maximum recorded latency, or 0 if empty.
func (s *LatencyStats) Max() uint64 { return s.max }

// Reset clears all accumulated statistics.
func (s *LatencyStats) Reset() {
	s.count, s.sum, s.max = 0, 0, 0
	s.min = ^uint64(0)
}

// ScopedTimer records the elapsed time into stats when Stop is called.
// Used as: defer clock.StartTimer(stats).Stop()
type ScopedTimer struct {
	stats *LatencyStats
	start Nanos
}

// StartTimer begins timing a scope, recording into stats on Stop.
func StartTimer(stats *LatencyStats) *ScopedTimer {
	return &ScopedTimer{stats: stats, start: Now()}
}

// Stop records the elapsed time since StartTimer into the stats.
func (t *ScopedTimer) Stop() {
	t.stats.Record(Since(t.start))
}
