package faceid

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    registerCounter   prometheus.Counter
//	    identifyHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordRegister(duration time.Duration, err error) {
//	    p.registerCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordRegister is called after each registration.
	// duration is the total time taken, err is nil if successful.
	RecordRegister(duration time.Duration, err error)

	// RecordIdentify is called after each identification.
	// k is the number of matches requested, duration is the time taken,
	// err is nil if successful.
	RecordIdentify(k int, duration time.Duration, err error)

	// RecordExtract is called after each embedding extraction.
	RecordExtract(duration time.Duration, err error)

	// RecordSnapshot is called after each snapshot persistence.
	RecordSnapshot(duration time.Duration, err error)

	// RecordRebuild is called after each index rebuild.
	RecordRebuild(entries int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRegister(time.Duration, error)     {}
func (NoopMetricsCollector) RecordIdentify(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordExtract(time.Duration, error)      {}
func (NoopMetricsCollector) RecordSnapshot(time.Duration, error)     {}
func (NoopMetricsCollector) RecordRebuild(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	RegisterCount      atomic.Int64
	RegisterErrors     atomic.Int64
	RegisterTotalNanos atomic.Int64
	IdentifyCount      atomic.Int64
	IdentifyErrors     atomic.Int64
	IdentifyTotalNanos atomic.Int64
	ExtractCount       atomic.Int64
	ExtractErrors      atomic.Int64
	SnapshotCount      atomic.Int64
	SnapshotErrors     atomic.Int64
	RebuildCount       atomic.Int64
	RebuildErrors      atomic.Int64
}

// RecordRegister implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRegister(duration time.Duration, err error) {
	b.RegisterCount.Add(1)
	b.RegisterTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RegisterErrors.Add(1)
	}
}

// RecordIdentify implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIdentify(k int, duration time.Duration, err error) {
	b.IdentifyCount.Add(1)
	b.IdentifyTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.IdentifyErrors.Add(1)
	}
}

// RecordExtract implements MetricsCollector.
func (b *BasicMetricsCollector) RecordExtract(duration time.Duration, err error) {
	b.ExtractCount.Add(1)
	if err != nil {
		b.ExtractErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// RecordRebuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRebuild(entries int, duration time.Duration, err error) {
	b.RebuildCount.Add(1)
	if err != nil {
		b.RebuildErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		RegisterCount:     b.RegisterCount.Load(),
		RegisterErrors:    b.RegisterErrors.Load(),
		RegisterAvgNanos:  b.avgNanos(&b.RegisterTotalNanos, &b.RegisterCount),
		IdentifyCount:     b.IdentifyCount.Load(),
		IdentifyErrors:    b.IdentifyErrors.Load(),
		IdentifyAvgNanos:  b.avgNanos(&b.IdentifyTotalNanos, &b.IdentifyCount),
		ExtractCount:      b.ExtractCount.Load(),
		ExtractErrors:     b.ExtractErrors.Load(),
		SnapshotCount:     b.SnapshotCount.Load(),
		SnapshotErrors:    b.SnapshotErrors.Load(),
		RebuildCount:      b.RebuildCount.Load(),
		RebuildErrors:     b.RebuildErrors.Load(),
	}
}

func (b *BasicMetricsCollector) avgNanos(total, count *atomic.Int64) int64 {
	c := count.Load()
	if c == 0 {
		return 0
	}
	return total.Load() / c
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	RegisterCount    int64
	RegisterErrors   int64
	RegisterAvgNanos int64
	IdentifyCount    int64
	IdentifyErrors   int64
	IdentifyAvgNanos int64
	ExtractCount     int64
	ExtractErrors    int64
	SnapshotCount    int64
	SnapshotErrors   int64
	RebuildCount     int64
	RebuildErrors    int64
}
