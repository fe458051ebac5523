package metrics

import "time"

// Snapshot is an immutable point-in-time report of one worker.
type Snapshot struct {
	WorkerID     int                       `json:"workerId"`
	PID          int                       `json:"pid"`
	Started      int64                     `json:"started"`
	Connecting   int64                     `json:"connecting"`
	Active       int                       `json:"active"`
	Opened       int64                     `json:"opened"`
	Closed       int64                     `json:"closed"`
	FailedToOpen int64                     `json:"failedToOpen"`
	Interactions int64                     `json:"interactions"`
	Errors       int64                     `json:"errors"`
	MemoryMB     float64                   `json:"memoryMb"`
	Latency      map[Op]LatencyStats       `json:"latency,omitempty"`
	ErrorTypes   map[string]map[string]int `json:"errorTypes,omitempty"`
	Final        bool                      `json:"final,omitempty"`
	Timestamp    time.Time                 `json:"timestamp"`
}

// Balanced reports whether the session ledger adds up: every started
// session is active, still connecting, closed or failed to open, and every
// opened session is active or closed.
func (s Snapshot) Balanced() bool {
	active := int64(s.Active)
	return s.Started == active+s.Connecting+s.Closed+s.FailedToOpen &&
		s.Opened == active+s.Closed
}

// Totals aggregates counters across workers.
type Totals struct {
	Workers      int     `json:"workers"`
	Active       int     `json:"active"`
	Opened       int64   `json:"opened"`
	Closed       int64   `json:"closed"`
	FailedToOpen int64   `json:"failedToOpen"`
	Interactions int64   `json:"interactions"`
	Errors       int64   `json:"errors"`
	MemoryMB     float64 `json:"memoryMb"`
}

// Sum adds up the counters of the given snapshots.
func Sum(snapshots []Snapshot) Totals {
	var t Totals
	for _, s := range snapshots {
		t.Workers++
		t.Active += s.Active
		t.Opened += s.Opened
		t.Closed += s.Closed
		t.FailedToOpen += s.FailedToOpen
		t.Interactions += s.Interactions
		t.Errors += s.Errors
		t.MemoryMB += s.MemoryMB
	}
	return t
}

// MergeLatency combines per-worker latency by operation. Means are weighted
// by count; percentiles and maxima keep the worst worker's value, since
// histograms are not shipped across processes.
func MergeLatency(snapshots []Snapshot) map[Op]LatencyStats {
	var merged map[Op]LatencyStats
	for _, snap := range snapshots {
		for op, stats := range snap.Latency {
			if merged == nil {
				merged = make(map[Op]LatencyStats)
			}
			cur := merged[op]
			total := cur.Count + stats.Count
			if total > 0 {
				cur.MeanMs = (cur.MeanMs*float64(cur.Count) + stats.MeanMs*float64(stats.Count)) / float64(total)
			}
			cur.Count = total
			cur.Errors += stats.Errors
			cur.P50Ms = max(cur.P50Ms, stats.P50Ms)
			cur.P90Ms = max(cur.P90Ms, stats.P90Ms)
			cur.P99Ms = max(cur.P99Ms, stats.P99Ms)
			cur.MaxMs = max(cur.MaxMs, stats.MaxMs)
			merged[op] = cur
		}
	}
	return merged
}

// MergeErrorTypes sums the error breakdowns of the given snapshots.
func MergeErrorTypes(snapshots []Snapshot) map[string]map[string]int {
	all := make([]map[string]map[string]int, 0, len(snapshots))
	for _, snap := range snapshots {
		all = append(all, snap.ErrorTypes)
	}
	return MergeErrorBuckets(all...)
}
