package vecgroup

import (
	"sync"
	"sync/atomic"
	"time"
)

// Pipeline stages reported to the MetricsCollector.
const (
	StageLoad       = "load"
	StageEmbed      = "embed"
	StageGraph      = "graph"
	StageCommunity  = "community"
	StagePartition  = "partition"
	StageOutput     = "output"
	CheckpointGraph = "graph"
	CheckpointEmbed = "embeddings"
)

// MetricsCollector defines an interface for collecting pipeline metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    stageHistogram *prometheus.HistogramVec
//	}
//
//	func (p *PrometheusCollector) RecordStage(stage string, d time.Duration, err error) {
//	    p.stageHistogram.WithLabelValues(stage).Observe(d.Seconds())
//	}
type MetricsCollector interface {
	// RecordStage is called after each pipeline stage.
	// duration is the time taken, err is nil if successful.
	RecordStage(stage string, duration time.Duration, err error)

	// RecordCheckpoint is called after each checkpoint lookup.
	// hit reports whether a usable checkpoint was found.
	RecordCheckpoint(name string, hit bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordStage(string, time.Duration, error) {}
func (NoopMetricsCollector) RecordCheckpoint(string, bool)            {}

// StageStats is a snapshot of the metrics of one stage.
type StageStats struct {
	Count      int64
	Errors     int64
	TotalNanos int64
}

type stageCounters struct {
	count      atomic.Int64
	errors     atomic.Int64
	totalNanos atomic.Int64
}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	stages sync.Map // stage name -> *stageCounters

	CheckpointHits   atomic.Int64
	CheckpointMisses atomic.Int64
}

// RecordStage implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStage(stage string, duration time.Duration, err error) {
	v, _ := b.stages.LoadOrStore(stage, &stageCounters{})
	c := v.(*stageCounters)

	c.count.Add(1)
	c.totalNanos.Add(duration.Nanoseconds())

	if err != nil {
		c.errors.Add(1)
	}
}

// RecordCheckpoint implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCheckpoint(_ string, hit bool) {
	if hit {
		b.CheckpointHits.Add(1)
	} else {
		b.CheckpointMisses.Add(1)
	}
}

// GetStats returns a snapshot of the per-stage metrics.
func (b *BasicMetricsCollector) GetStats() map[string]StageStats {
	out := make(map[string]StageStats)

	b.stages.Range(func(k, v any) bool {
		c := v.(*stageCounters)
		out[k.(string)] = StageStats{
			Count:      c.count.Load(),
			Errors:     c.errors.Load(),
			TotalNanos: c.totalNanos.Load(),
		}

		return true
	})

	return out
}
