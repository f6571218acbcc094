// Package metrics collects in-memory timings for pipeline operations.
package metrics

import (
	"sync"
	"time"
)

// Operation names for the collector.
const (
	OpEmbedding  = "embedding"
	OpReasoning  = "reasoning"
	OpStoreQuery = "store_query"
	OpStoreWrite = "store_write"
	OpLane       = "lane"
	OpPipeline   = "pipeline"
)

// displayOrder is the order Rows reports operations in.
var displayOrder = []string{OpPipeline, OpLane, OpEmbedding, OpStoreQuery, OpStoreWrite, OpReasoning}

// span tracks count, sum, min and max of a series of samples.
type span struct {
	n, sum, min, max int64
}

func (s *span) add(v int64) {
	if s.n == 0 || v < s.min {
		s.min = v
	}
	if v > s.max {
		s.max = v
	}
	s.n++
	s.sum += v
}

func (s span) avg() float64 {
	if s.n == 0 {
		return 0
	}
	return float64(s.sum) / float64(s.n)
}

// opStats is the raw record for one operation.
type opStats struct {
	durations span // milliseconds
	inTokens  span
	outTokens span
	failures  int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64
	Failures    int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64

	// Token stats (nil if not applicable)
	TotalInputTokens  *int64
	TotalOutputTokens *int64
	AvgInputTokens    *float64
	AvgOutputTokens   *float64
	MinInputTokens    *int64
	MaxInputTokens    *int64
	MinOutputTokens   *int64
	MaxOutputTokens   *int64
}

// Snapshot represents pipeline statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Embedding     *OperationSnapshot
	Reasoning     *OperationSnapshot
	StoreQuery    *OperationSnapshot
	StoreWrite    *OperationSnapshot
	Lane          *OperationSnapshot
	Pipeline      *OperationSnapshot
}

// NamedSnapshot labels an operation snapshot.
type NamedSnapshot struct {
	Op    string
	Stats *OperationSnapshot
}

// Collector aggregates in-memory runtime statistics.
// All methods are safe for concurrent use, and a nil *Collector discards records.
type Collector struct {
	mu      sync.RWMutex
	started time.Time
	ops     map[string]*opStats
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		started: time.Now(),
		ops:     make(map[string]*opStats),
	}
}

// record runs fn on the stats for op under the write lock.
func (c *Collector) record(op string, fn func(*opStats)) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.ops[op]
	if !ok {
		s = &opStats{}
		c.ops[op] = s
	}
	fn(s)
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.record(op, func(s *opStats) {
		s.durations.add(duration.Milliseconds())
	})
}

// RecordLLMUsage records timing and token usage for a reasoning call.
func (c *Collector) RecordLLMUsage(op string, duration time.Duration, inputTokens, outputTokens int64) {
	c.record(op, func(s *opStats) {
		s.durations.add(duration.Milliseconds())
		s.inTokens.add(inputTokens)
		s.outTokens.add(outputTokens)
	})
}

// RecordFailure counts a failed operation. Failures are reported alongside
// timings but do not add a timing sample.
func (c *Collector) RecordFailure(op string) {
	c.record(op, func(s *opStats) {
		s.failures++
	})
}

func (s *opStats) snapshot() *OperationSnapshot {
	if s == nil || (s.durations.n == 0 && s.failures == 0) {
		return nil
	}

	d := s.durations
	snap := &OperationSnapshot{
		Count:       d.n,
		Failures:    s.failures,
		TotalTimeMs: d.sum,
		AvgTimeMs:   d.avg(),
		MinTimeMs:   d.min,
		MaxTimeMs:   d.max,
	}

	// Providers that do not report usage record zeros; hide those.
	if s.inTokens.sum > 0 || s.outTokens.sum > 0 {
		in, out := s.inTokens, s.outTokens
		avgIn, avgOut := in.avg(), out.avg()
		snap.TotalInputTokens = &in.sum
		snap.TotalOutputTokens = &out.sum
		snap.AvgInputTokens = &avgIn
		snap.AvgOutputTokens = &avgOut
		snap.MinInputTokens = &in.min
		snap.MaxInputTokens = &in.max
		snap.MinOutputTokens = &out.min
		snap.MaxOutputTokens = &out.max
	}
	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.started).Seconds(),
		Embedding:     c.ops[OpEmbedding].snapshot(),
		Reasoning:     c.ops[OpReasoning].snapshot(),
		StoreQuery:    c.ops[OpStoreQuery].snapshot(),
		StoreWrite:    c.ops[OpStoreWrite].snapshot(),
		Lane:          c.ops[OpLane].snapshot(),
		Pipeline:      c.ops[OpPipeline].snapshot(),
	}
}

// Rows returns the non-empty operations of a snapshot in display order.
func (s Snapshot) Rows() []NamedSnapshot {
	byOp := map[string]*OperationSnapshot{
		OpPipeline:   s.Pipeline,
		OpLane:       s.Lane,
		OpEmbedding:  s.Embedding,
		OpStoreQuery: s.StoreQuery,
		OpStoreWrite: s.StoreWrite,
		OpReasoning:  s.Reasoning,
	}
	var rows []NamedSnapshot
	for _, op := range displayOrder {
		if stats := byOp[op]; stats != nil {
			rows = append(rows, NamedSnapshot{Op: op, Stats: stats})
		}
	}
	return rows
}
