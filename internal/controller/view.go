package controller

import (
	"sort"
	"sync"
	"time"

	"github.com/torosent/loadsurge/internal/metrics"
)

// DefaultLogLines is the number of worker log lines a View keeps.
const DefaultLogLines = 100

// LogLine is one line of worker output.
type LogLine struct {
	Time     time.Time
	WorkerID int
	Text     string
}

// WorkerStatus is everything the controller knows about one worker.
type WorkerStatus struct {
	ID          int
	PID         int
	Snapshot    metrics.Snapshot
	HasSnapshot bool
	Exited      bool
	Exit        ExitStatus
}

// Completed reports whether the worker delivered its final snapshot.
func (w WorkerStatus) Completed() bool {
	return w.HasSnapshot && w.Snapshot.Final
}

// View is the controller's aggregate picture of a run. The latest snapshot
// of each worker replaces the previous one. Safe for concurrent use; the
// dashboard, the progress reporter and the exporter read it while
// supervisors write it.
type View struct {
	mu       sync.RWMutex
	started  time.Time
	workers  map[int]*WorkerStatus
	logs     []LogLine
	maxLogs  int
	settings []Setting
}

// Setting is one resolved configuration entry shown alongside the run.
type Setting struct {
	Name  string
	Value string
}

func NewView(maxLogs int) *View {
	if maxLogs <= 0 {
		maxLogs = DefaultLogLines
	}
	return &View{
		started: time.Now(),
		workers: make(map[int]*WorkerStatus),
		maxLogs: maxLogs,
	}
}

// SetSettings records the resolved run configuration for display.
func (v *View) SetSettings(settings []Setting) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.settings = append([]Setting(nil), settings...)
}

func (v *View) Settings() []Setting {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]Setting(nil), v.settings...)
}

// Started returns when the view was created.
func (v *View) Started() time.Time {
	return v.started
}

// Register adds a worker before it has reported anything.
func (v *View) Register(id, pid int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	w := v.worker(id)
	w.PID = pid
}

// UpdateSnapshot stores snap as the worker's latest state.
func (v *View) UpdateSnapshot(id int, snap metrics.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	w := v.worker(id)
	w.Snapshot = snap
	w.HasSnapshot = true
	if snap.PID != 0 {
		w.PID = snap.PID
	}
}

// AddLog appends a worker log line, evicting the oldest beyond capacity.
func (v *View) AddLog(id int, text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.logs = append(v.logs, LogLine{Time: time.Now(), WorkerID: id, Text: text})
	if over := len(v.logs) - v.maxLogs; over > 0 {
		v.logs = append(v.logs[:0:0], v.logs[over:]...)
	}
}

// MarkExited records how a worker process ended.
func (v *View) MarkExited(id int, status ExitStatus) {
	v.mu.Lock()
	defer v.mu.Unlock()
	w := v.worker(id)
	w.Exited = true
	w.Exit = status
}

// Worker returns the status of one worker.
func (v *View) Worker(id int) (WorkerStatus, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	w, ok := v.workers[id]
	if !ok {
		return WorkerStatus{}, false
	}
	return *w, true
}

// Workers returns all worker statuses ordered by id.
func (v *View) Workers() []WorkerStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]WorkerStatus, 0, len(v.workers))
	for _, w := range v.workers {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Logs returns the retained log lines, oldest first.
func (v *View) Logs() []LogLine {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]LogLine(nil), v.logs...)
}

// Snapshots returns the latest snapshot of every worker that reported.
func (v *View) Snapshots() []metrics.Snapshot {
	workers := v.Workers()
	out := make([]metrics.Snapshot, 0, len(workers))
	for _, w := range workers {
		if w.HasSnapshot {
			out = append(out, w.Snapshot)
		}
	}
	return out
}

// Totals sums the latest snapshots.
func (v *View) Totals() metrics.Totals {
	return metrics.Sum(v.Snapshots())
}

// Running counts workers that have not exited yet.
func (v *View) Running() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	running := 0
	for _, w := range v.workers {
		if !w.Exited {
			running++
		}
	}
	return running
}

// ExitCode aggregates worker exits: the code of the lowest numbered worker
// that failed, or 0 when all succeeded.
func (v *View) ExitCode() int {
	for _, w := range v.Workers() {
		if w.Exited && w.Exit.Code != 0 {
			return w.Exit.Code
		}
	}
	return 0
}

func (v *View) worker(id int) *WorkerStatus {
	w, ok := v.workers[id]
	if !ok {
		w = &WorkerStatus{ID: id}
		v.workers[id] = w
	}
	return w
}
