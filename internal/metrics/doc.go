// Package metrics provides the per-worker measurements reported to the
// controller during a load run.
//
// # Collector
//
// A [Collector] records the latency of every scenario operation (connect,
// interact, close) into an HDR histogram and classifies failures by error
// type:
//
//	collector := metrics.NewCollector()
//	collector.Record(metrics.OpConnect, latency, err)
//
//	latency := collector.Latencies()
//	breakdown := collector.ErrorBreakdown()
//
// # Snapshots
//
// A [Snapshot] is an immutable point-in-time copy of a worker's counters plus
// its process identity and memory usage. Workers emit one every second and on
// every state-changing event; the controller keeps the latest one per worker.
//
// # Thread Safety
//
// The Collector is safe for concurrent use. Snapshots are values and are never
// mutated after creation.
package metrics
