package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Op names a scenario operation whose latency is tracked.
type Op string

const (
	OpConnect  Op = "connect"
	OpInteract Op = "interact"
	OpClose    Op = "close"
)

// Ops lists the tracked operations in display order.
var Ops = []Op{OpConnect, OpInteract, OpClose}

// LatencyStats summarizes the latency distribution of one operation.
type LatencyStats struct {
	Count  int64   `json:"count"`
	Errors int64   `json:"errors"`
	MeanMs float64 `json:"meanMs"`
	P50Ms  float64 `json:"p50Ms"`
	P90Ms  float64 `json:"p90Ms"`
	P99Ms  float64 `json:"p99Ms"`
	MaxMs  float64 `json:"maxMs"`
}

type opStats struct {
	hist   *hdrhistogram.Histogram
	sum    time.Duration
	max    time.Duration
	errors int64
}

// Collector records per-operation latencies in a thread-safe manner.
type Collector struct {
	mu           sync.Mutex
	ops          map[Op]*opStats
	errorsByType map[Op]map[string]int64
}

func NewCollector() *Collector {
	return &Collector{
		ops:          make(map[Op]*opStats),
		errorsByType: make(map[Op]map[string]int64),
	}
}

// Record records a single operation's latency and error state.
func (c *Collector) Record(op Op, latency time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.ops[op]
	if !ok {
		// Track latencies from 1µs up to 60s with 3 significant figures.
		stats = &opStats{hist: hdrhistogram.New(1, 60_000_000, 3)}
		c.ops[op] = stats
	}

	us := latency.Microseconds()
	if us < stats.hist.LowestTrackableValue() {
		us = stats.hist.LowestTrackableValue()
	}
	if us > stats.hist.HighestTrackableValue() {
		us = stats.hist.HighestTrackableValue()
	}
	_ = stats.hist.RecordValue(us)
	stats.sum += latency
	if latency > stats.max {
		stats.max = latency
	}

	if err != nil {
		stats.errors++
		byType, ok := c.errorsByType[op]
		if !ok {
			byType = make(map[string]int64)
			c.errorsByType[op] = byType
		}
		byType[ErrorName(err)]++
	}
}

// Latencies returns the latency summary of every operation recorded so far.
func (c *Collector) Latencies() map[Op]LatencyStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.ops) == 0 {
		return nil
	}
	result := make(map[Op]LatencyStats, len(c.ops))
	for op, stats := range c.ops {
		count := stats.hist.TotalCount()
		summary := LatencyStats{
			Count:  count,
			Errors: stats.errors,
			MaxMs:  toMillis(stats.max),
		}
		if count > 0 {
			summary.MeanMs = toMillis(time.Duration(int64(stats.sum) / count))
			summary.P50Ms = toMillis(time.Duration(stats.hist.ValueAtQuantile(50)) * time.Microsecond)
			summary.P90Ms = toMillis(time.Duration(stats.hist.ValueAtQuantile(90)) * time.Microsecond)
			summary.P99Ms = toMillis(time.Duration(stats.hist.ValueAtQuantile(99)) * time.Microsecond)
		}
		result[op] = summary
	}
	return result
}

// ErrorBreakdown returns failure counts keyed by operation and error type.
func (c *Collector) ErrorBreakdown() map[string]map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.errorsByType) == 0 {
		return nil
	}
	result := make(map[string]map[string]int, len(c.errorsByType))
	for op, byType := range c.errorsByType {
		inner := make(map[string]int, len(byType))
		for name, count := range byType {
			inner[name] = int(count)
		}
		result[string(op)] = inner
	}
	return result
}

// SortedOps returns the keys of a latency map in display order.
func SortedOps(latency map[Op]LatencyStats) []Op {
	ops := make([]Op, 0, len(latency))
	for op := range latency {
		ops = append(ops, op)
	}
	rank := func(op Op) int {
		for i, known := range Ops {
			if known == op {
				return i
			}
		}
		return len(Ops)
	}
	sort.Slice(ops, func(i, j int) bool {
		ri, rj := rank(ops[i]), rank(ops[j])
		if ri == rj {
			return ops[i] < ops[j]
		}
		return ri < rj
	})
	return ops
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
