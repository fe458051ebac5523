package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/loadsurge/internal/controller"
)

// ProgressReporter rewrites a single status line with the run's totals.
type ProgressReporter struct {
	view     *controller.View
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(view *controller.View, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		view:     view,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and prints the line one last time.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprint(p.writer, progressLine(p.view))
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, progressLine(p.view))
		case <-p.done:
			return
		}
	}
}

func progressLine(view *controller.View) string {
	t := view.Totals()
	workers := len(view.Workers())
	return fmt.Sprintf("\rWorkers: %d/%d | Active: %d | Opened: %d | Closed: %d | Failed: %d | Interactions: %d | Errors: %d | Mem: %.1f MB",
		view.Running(), workers, t.Active, t.Opened, t.Closed, t.FailedToOpen, t.Interactions, t.Errors, t.MemoryMB)
}
