package output

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/torosent/loadsurge/internal/controller"
	"github.com/torosent/loadsurge/internal/metrics"
)

func sampleReport(t *testing.T) Report {
	t.Helper()
	view := sampleView()
	view.SetSettings([]controller.Setting{{Name: "Scenario", Value: "idle"}, {Name: "Workers", Value: "2"}})
	view.UpdateSnapshot(1, metrics.Snapshot{
		WorkerID: 1, PID: 101, Opened: 3, Closed: 3, Interactions: 7, MemoryMB: 10, Final: true,
		Latency:    map[metrics.Op]metrics.LatencyStats{metrics.OpConnect: {Count: 3, MeanMs: 2, P99Ms: 4, MaxMs: 5}},
		ErrorTypes: map[string]map[string]int{"interact": {"Timeout": 2}},
	})
	view.MarkExited(1, controller.ExitStatus{})
	return BuildReport("run-1", view, view.Started().Add(1500*time.Millisecond))
}

func TestBuildReport(t *testing.T) {
	r := sampleReport(t)

	if r.RunID != "run-1" {
		t.Errorf("RunID = %q", r.RunID)
	}
	if r.DurationMs != 1500 {
		t.Errorf("DurationMs = %d, want 1500", r.DurationMs)
	}
	if r.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", r.ExitCode)
	}
	if r.Totals.Opened != 5 || r.Totals.FailedToOpen != 1 {
		t.Errorf("unexpected totals %+v", r.Totals)
	}
	if len(r.Workers) != 2 {
		t.Fatalf("expected 2 workers, got %d", len(r.Workers))
	}
	if !r.Workers[0].Completed || r.Workers[0].Exit != "exit code 0" {
		t.Errorf("worker 1 = %+v", r.Workers[0])
	}
	if r.Workers[1].Completed || r.Workers[1].ExitCode != 1 {
		t.Errorf("worker 2 = %+v", r.Workers[1])
	}
	if got := r.Latency[metrics.OpConnect].Count; got != 3 {
		t.Errorf("connect count = %d", got)
	}
	if len(r.Errors) != 1 || r.Errors[0].Type != "Timeout" || r.Errors[0].Count != 2 {
		t.Errorf("errors = %+v", r.Errors)
	}
	if len(r.Settings) != 2 || r.Settings[0].Value != "idle" {
		t.Errorf("settings = %+v", r.Settings)
	}
}

func TestBuildReportRunningWorker(t *testing.T) {
	view := controller.NewView(0)
	view.Register(1, 42)
	r := BuildReport("x", view, time.Now())
	if len(r.Workers) != 1 || r.Workers[0].Exit != "running" {
		t.Fatalf("unexpected workers %+v", r.Workers)
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleReport(t))

	out := buf.String()
	for _, want := range []string{
		"--- Load Test Results ---",
		"Run:               run-1",
		"Duration:          1.5s",
		"Sessions opened:   5",
		"Failed to open:    1",
		"Exit code:         1",
		"Latency:",
		"connect",
		"INTERACT Timeout: 2",
		"3 (3)",
		"exit code 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestPrintJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, sampleReport(t)); err != nil {
		t.Fatalf("PrintJSONReport() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["runId"] != "run-1" {
		t.Errorf("runId = %v", decoded["runId"])
	}
	if decoded["durationMs"] != float64(1500) {
		t.Errorf("durationMs = %v", decoded["durationMs"])
	}
	workers, ok := decoded["workers"].([]any)
	if !ok || len(workers) != 2 {
		t.Fatalf("workers = %v", decoded["workers"])
	}
}

func TestWriteReportFileFormats(t *testing.T) {
	dir := t.TempDir()
	r := sampleReport(t)

	tests := []struct {
		name string
		file string
		want string
	}{
		{name: "json", file: "report.json", want: `"runId": "run-1"`},
		{name: "html", file: "report.html", want: "<!DOCTYPE html>"},
		{name: "text", file: "report.txt", want: "--- Load Test Results ---"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := WriteReportFile(context.Background(), path, r); err != nil {
				t.Fatalf("WriteReportFile() error = %v", err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read report: %v", err)
			}
			if !strings.Contains(string(data), tt.want) {
				t.Errorf("report %s missing %q", tt.file, tt.want)
			}
		})
	}
}

func TestWriteReportFileWaitsForLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")

	held := flock.New(path + ".lock")
	if err := held.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer held.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := WriteReportFile(ctx, path, sampleReport(t)); err == nil {
		t.Fatal("expected an error while the lock is held")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("report should not be written while locked, stat err = %v", err)
	}
}
