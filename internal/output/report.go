package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/torosent/loadsurge/internal/controller"
	"github.com/torosent/loadsurge/internal/metrics"
)

// lockRetryDelay is how often WriteReportFile retries a held report lock.
const lockRetryDelay = 50 * time.Millisecond

// Report is the end-of-run summary.
type Report struct {
	RunID      string                              `json:"runId"`
	StartedAt  time.Time                           `json:"startedAt"`
	FinishedAt time.Time                           `json:"finishedAt"`
	Duration   time.Duration                       `json:"-"`
	DurationMs int64                               `json:"durationMs"`
	ExitCode   int                                 `json:"exitCode"`
	Settings   []Setting                           `json:"settings,omitempty"`
	Totals     metrics.Totals                      `json:"totals"`
	Workers    []WorkerReport                      `json:"workers"`
	Latency    map[metrics.Op]metrics.LatencyStats `json:"latency,omitempty"`
	Errors     []metrics.ErrorBucket               `json:"errors,omitempty"`
}

type Setting struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// WorkerReport is one worker's final state.
type WorkerReport struct {
	ID           int     `json:"id"`
	PID          int     `json:"pid"`
	Opened       int64   `json:"opened"`
	Closed       int64   `json:"closed"`
	FailedToOpen int64   `json:"failedToOpen"`
	Interactions int64   `json:"interactions"`
	Errors       int64   `json:"errors"`
	MemoryMB     float64 `json:"memoryMb"`
	Completed    bool    `json:"completed"`
	ExitCode     int     `json:"exitCode"`
	Exit         string  `json:"exit"`
}

// BuildReport summarizes the view as it stands at finishedAt.
func BuildReport(runID string, view *controller.View, finishedAt time.Time) Report {
	workers := view.Workers()
	snaps := view.Snapshots()
	started := view.Started()

	r := Report{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(started),
		DurationMs: finishedAt.Sub(started).Milliseconds(),
		ExitCode:   view.ExitCode(),
		Totals:     metrics.Sum(snaps),
		Workers:    make([]WorkerReport, 0, len(workers)),
		Latency:    metrics.MergeLatency(snaps),
		Errors:     metrics.FlattenErrorBuckets(metrics.MergeErrorTypes(snaps)),
	}
	for _, s := range view.Settings() {
		r.Settings = append(r.Settings, Setting{Name: s.Name, Value: s.Value})
	}
	for _, w := range workers {
		exit := "running"
		if w.Exited {
			exit = w.Exit.String()
		}
		r.Workers = append(r.Workers, WorkerReport{
			ID:           w.ID,
			PID:          w.PID,
			Opened:       w.Snapshot.Opened,
			Closed:       w.Snapshot.Closed,
			FailedToOpen: w.Snapshot.FailedToOpen,
			Interactions: w.Snapshot.Interactions,
			Errors:       w.Snapshot.Errors,
			MemoryMB:     w.Snapshot.MemoryMB,
			Completed:    w.Completed(),
			ExitCode:     w.Exit.Code,
			Exit:         exit,
		})
	}
	return r
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Report) {
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	fmt.Fprintf(w, "Run:               %s\n", r.RunID)
	fmt.Fprintf(w, "Duration:          %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Workers:           %d\n", len(r.Workers))
	fmt.Fprintf(w, "Sessions opened:   %d\n", r.Totals.Opened)
	fmt.Fprintf(w, "Sessions closed:   %d\n", r.Totals.Closed)
	fmt.Fprintf(w, "Failed to open:    %d\n", r.Totals.FailedToOpen)
	fmt.Fprintf(w, "Interactions:      %d\n", r.Totals.Interactions)
	fmt.Fprintf(w, "Errors:            %d\n", r.Totals.Errors)
	fmt.Fprintf(w, "Exit code:         %d\n", r.ExitCode)

	if len(r.Latency) > 0 {
		fmt.Fprintln(w, "\nLatency:")
		for _, op := range metrics.SortedOps(r.Latency) {
			s := r.Latency[op]
			fmt.Fprintf(w, "  %-9s count=%d errors=%d mean=%.2fms p50=%.2fms p90=%.2fms p99=%.2fms max=%.2fms\n",
				op, s.Count, s.Errors, s.MeanMs, s.P50Ms, s.P90Ms, s.P99Ms, s.MaxMs)
		}
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, row := range r.Errors {
			fmt.Fprintf(w, "  %s %s: %d\n", strings.ToUpper(row.Op), row.Type, row.Count)
		}
	}

	fmt.Fprintln(w, "\nWorkers:")
	fmt.Fprintf(w, "  %-6s %-8s %-16s %-12s %-7s %-10s %s\n", "ID", "PID", "Opened (Closed)", "Interactions", "Errors", "Memory MB", "Exit")
	for _, wr := range r.Workers {
		fmt.Fprintf(w, "  %-6d %-8d %-16s %-12d %-7d %-10.2f %s\n",
			wr.ID, wr.PID, fmt.Sprintf("%d (%d)", wr.Opened, wr.Closed), wr.Interactions, wr.Errors, wr.MemoryMB, wr.Exit)
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteReportFile renders r into path, choosing the format from the file
// extension: .json, .html/.htm, anything else is text. A sibling ".lock"
// file serializes concurrent runs sharing one report path.
func WriteReportFile(ctx context.Context, path string, r Report) error {
	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := PrintJSONReport(&buf, r); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	case ".html", ".htm":
		if err := GenerateHTMLReport(&buf, r); err != nil {
			return err
		}
	default:
		PrintReport(&buf, r)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock report file: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock report file: %s is held by another process", path)
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
