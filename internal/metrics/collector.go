// Package metrics collects in-memory timing and token statistics for a run.
package metrics

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Token metrics (only for LLM operations)
	TotalInputTokens  int64
	TotalOutputTokens int64
	MinInputTokens    int64
	MaxInputTokens    int64
	MinOutputTokens   int64
	MaxOutputTokens   int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64
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

// Snapshot represents the run statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	LLMGenerate   *OperationSnapshot
	Extraction    *OperationSnapshot
	Clustering    *OperationSnapshot
	Dedupe        *OperationSnapshot
	ArtifactWrite *OperationSnapshot
	DBQuery       *OperationSnapshot
}

// Operation names for the collector.
const (
	OpLLMGenerate   = "llm_generate"
	OpExtraction    = "extraction"
	OpClustering    = "clustering"
	OpDedupe        = "dedupe"
	OpArtifactWrite = "artifact_write"
	OpDBQuery       = "db_query"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime:         time.Duration(math.MaxInt64),
			MinInputTokens:  math.MaxInt64,
			MinOutputTokens: math.MaxInt64,
		}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.getOrCreate(op).addTiming(duration)
}

// Time returns a func that records the elapsed time for op when called.
//
//	defer mc.Time(metrics.OpClustering)()
func (c *Collector) Time(op string) func() {
	start := time.Now()
	return func() { c.RecordTiming(op, time.Since(start)) }
}

func (m *OperationMetrics) addTiming(d time.Duration) {
	m.Count++
	m.TotalTime += d
	m.MinTime = min(m.MinTime, d)
	m.MaxTime = max(m.MaxTime, d)
}

// RecordLLMUsage records timing and token usage for an LLM operation.
func (c *Collector) RecordLLMUsage(op string, duration time.Duration, inputTokens, outputTokens int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.addTiming(duration)

	m.TotalInputTokens += inputTokens
	m.TotalOutputTokens += outputTokens

	m.MinInputTokens = min(m.MinInputTokens, inputTokens)
	m.MaxInputTokens = max(m.MaxInputTokens, inputTokens)
	m.MinOutputTokens = min(m.MinOutputTokens, outputTokens)
	m.MaxOutputTokens = max(m.MaxOutputTokens, outputTokens)
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics, includeTokens bool) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}

	if includeTokens && (m.TotalInputTokens > 0 || m.TotalOutputTokens > 0) {
		totalIn := m.TotalInputTokens
		totalOut := m.TotalOutputTokens
		avgIn := float64(m.TotalInputTokens) / float64(m.Count)
		avgOut := float64(m.TotalOutputTokens) / float64(m.Count)
		minIn := m.MinInputTokens
		maxIn := m.MaxInputTokens
		minOut := m.MinOutputTokens
		maxOut := m.MaxOutputTokens

		// Reset sentinel values for display
		if minIn == math.MaxInt64 {
			minIn = 0
		}
		if minOut == math.MaxInt64 {
			minOut = 0
		}

		snap.TotalInputTokens = &totalIn
		snap.TotalOutputTokens = &totalOut
		snap.AvgInputTokens = &avgIn
		snap.AvgOutputTokens = &avgOut
		snap.MinInputTokens = &minIn
		snap.MaxInputTokens = &maxIn
		snap.MinOutputTokens = &minOut
		snap.MaxOutputTokens = &maxOut
	}

	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		LLMGenerate:   snapshotOp(c.ops[OpLLMGenerate], true),
		Extraction:    snapshotOp(c.ops[OpExtraction], false),
		Clustering:    snapshotOp(c.ops[OpClustering], false),
		Dedupe:        snapshotOp(c.ops[OpDedupe], false),
		ArtifactWrite: snapshotOp(c.ops[OpArtifactWrite], false),
		DBQuery:       snapshotOp(c.ops[OpDBQuery], false),
	}
}

// LogValue renders the non-empty operations as structured log attributes.
func (s Snapshot) LogValue() slog.Value {
	attrs := []slog.Attr{slog.Float64("uptime_seconds", s.UptimeSeconds)}
	add := func(name string, op *OperationSnapshot) {
		if op == nil {
			return
		}
		group := []any{
			slog.Int64("count", op.Count),
			slog.Int64("total_ms", op.TotalTimeMs),
			slog.Float64("avg_ms", op.AvgTimeMs),
		}
		if op.TotalInputTokens != nil {
			group = append(group, slog.Int64("input_tokens", *op.TotalInputTokens))
		}
		if op.TotalOutputTokens != nil {
			group = append(group, slog.Int64("output_tokens", *op.TotalOutputTokens))
		}
		attrs = append(attrs, slog.Group(name, group...))
	}
	add(OpLLMGenerate, s.LLMGenerate)
	add(OpExtraction, s.Extraction)
	add(OpClustering, s.Clustering)
	add(OpDedupe, s.Dedupe)
	add(OpArtifactWrite, s.ArtifactWrite)
	add(OpDBQuery, s.DBQuery)
	return slog.GroupValue(attrs...)
}
