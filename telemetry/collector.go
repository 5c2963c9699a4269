// Package telemetry aggregates prewarm cache metrics: a plain in-process
// collector queried by callers, mirrored to OpenTelemetry instruments when
// export is configured.
package telemetry

import (
	"context"
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of the collector.
type Stats struct {
	TotalPrewarms      int64         `json:"total_prewarms"`
	SuccessfulPrewarms int64         `json:"successful_prewarms"`
	FailedPrewarms     int64         `json:"failed_prewarms"`
	CacheHits          int64         `json:"cache_hits"`
	CacheMisses        int64         `json:"cache_misses"`
	AnimationsEvicted  int64         `json:"animations_evicted"`
	AvgWarmDuration    time.Duration `json:"avg_warm_duration"`
	AvgAccessLatency   time.Duration `json:"avg_access_latency"`
	PeakMemoryMB       float64       `json:"peak_memory_mb"`
}

// HitRate returns hits / (hits + misses), or 0 when no accesses were
// recorded.
func (s Stats) HitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// Collector accumulates running counters and averages for the engine. It has
// no control flow of its own: components record, callers snapshot.
//
// All methods are safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	warmAttempts  int64
	warmSuccesses int64
	warmFailures  int64
	hits          int64
	misses        int64
	evicted       int64

	avgWarm     time.Duration
	warmSamples int64

	avgAccess     time.Duration
	accessSamples int64

	peakMemoryMB float64

	inst *Instruments
}

// NewCollector creates a collector. inst may be nil when OpenTelemetry export
// is not configured.
func NewCollector(inst *Instruments) *Collector {
	return &Collector{inst: inst}
}

// RecordWarmAttempt counts one warm attempt, successful or not.
func (c *Collector) RecordWarmAttempt(ctx context.Context) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.warmAttempts++
	c.mu.Unlock()

	c.inst.recordWarmAttempt(ctx)
}

// RecordWarmSuccess counts a successful warm and folds its duration into the
// rolling average.
func (c *Collector) RecordWarmSuccess(ctx context.Context, d time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.warmSuccesses++
	c.warmSamples++
	c.avgWarm += (d - c.avgWarm) / time.Duration(c.warmSamples)
	c.mu.Unlock()

	c.inst.recordWarmOutcome(ctx, "success", d)
}

// RecordWarmFailure counts a failed warm.
func (c *Collector) RecordWarmFailure(ctx context.Context) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.warmFailures++
	c.mu.Unlock()

	c.inst.recordWarmOutcome(ctx, "failure", 0)
}

// RecordAccess counts a cache hit or miss and folds the access latency into
// the rolling average.
func (c *Collector) RecordAccess(ctx context.Context, hit bool, latency time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.accessSamples++
	c.avgAccess += (latency - c.avgAccess) / time.Duration(c.accessSamples)
	c.mu.Unlock()

	c.inst.recordAccess(ctx, hit, latency)
}

// RecordEvictions counts n evicted entries.
func (c *Collector) RecordEvictions(ctx context.Context, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.mu.Lock()
	c.evicted += int64(n)
	c.mu.Unlock()

	c.inst.recordEvictions(ctx, n)
}

// ObserveMemory records current memory usage, tracking the peak.
func (c *Collector) ObserveMemory(ctx context.Context, usageMB float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if usageMB > c.peakMemoryMB {
		c.peakMemoryMB = usageMB
	}
	peak := c.peakMemoryMB
	c.mu.Unlock()

	c.inst.recordMemory(ctx, usageMB, peak)
}

// Snapshot returns the current counter values.
func (c *Collector) Snapshot() Stats {
	if c == nil {
		return Stats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		TotalPrewarms:      c.warmAttempts,
		SuccessfulPrewarms: c.warmSuccesses,
		FailedPrewarms:     c.warmFailures,
		CacheHits:          c.hits,
		CacheMisses:        c.misses,
		AnimationsEvicted:  c.evicted,
		AvgWarmDuration:    c.avgWarm,
		AvgAccessLatency:   c.avgAccess,
		PeakMemoryMB:       c.peakMemoryMB,
	}
}

// Reset zeroes all counters and averages. OpenTelemetry counters are
// monotonic by contract and are left alone.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.warmAttempts = 0
	c.warmSuccesses = 0
	c.warmFailures = 0
	c.hits = 0
	c.misses = 0
	c.evicted = 0
	c.avgWarm = 0
	c.warmSamples = 0
	c.avgAccess = 0
	c.accessSamples = 0
	c.peakMemoryMB = 0
}
