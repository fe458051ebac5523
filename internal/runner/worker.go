package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/torosent/loadsurge/internal/metrics"
	"github.com/torosent/loadsurge/internal/random"
	"github.com/torosent/loadsurge/internal/scenario"
)

// Worker runs one registry of sessions from ramp-up to ramp-down.
type Worker struct {
	opt       Options
	cfg       RunConfig
	adapter   scenario.Adapter
	stream    *random.Stream
	reporter  Reporter
	collector *metrics.Collector

	registry *Registry
	state    RunState
	memoryMB float64
	results  chan result

	nextIndex      int
	rampTimer      *time.Timer
	interactTicker *time.Ticker
	tickSeq        int
	ticks          map[int]*tickLedger
	inflight       int

	rampingDown  bool
	draining     bool
	queueClosed  bool
	closing      int
	closeQueue   chan *Session
	rampDownDone chan struct{}
}

func NewWorker(opt Options) (*Worker, error) {
	if opt.Adapter == nil {
		return nil, errors.New("worker: scenario adapter is required")
	}
	if opt.Reporter == nil {
		return nil, errors.New("worker: reporter is required")
	}
	opt.normalize()
	if err := opt.Config.Validate(); err != nil {
		return nil, err
	}
	return &Worker{
		opt:       opt,
		cfg:       opt.Config,
		adapter:   opt.Adapter,
		stream:    opt.Stream,
		reporter:  opt.Reporter,
		collector: metrics.NewCollector(),
		registry:  NewRegistry(),
		results:   make(chan result, opt.Config.Sessions),
		nextIndex: 1,
		ticks:     make(map[int]*tickLedger),
	}, nil
}

// Run executes the whole run and returns the process exit code: 0 when no
// error occurred, 1 otherwise. Cancelling ctx ends ramp-up early and starts
// ramp-down; adapter calls already started are allowed to complete.
func (w *Worker) Run(ctx context.Context) int {
	opCtx := context.WithoutCancel(ctx)

	w.memoryMB = w.opt.MemorySampler()
	w.report(false)

	env := scenario.Env{
		WorkerID:            w.opt.WorkerID,
		Options:             w.opt.AdapterOptions,
		RandomNumberBetween: w.stream.Next,
		Log:                 w.log,
	}
	if err := w.adapter.Init(ctx, env); err != nil {
		w.state.Errors++
		w.logf("Scenario initialisation failed: %v", err)
		return w.exit()
	}

	w.rampTimer = time.NewTimer(ArrivalDelay(w.cfg.Interval, w.nextIndex, w.cfg.Sessions, w.cfg.Shape))
	defer w.rampTimer.Stop()
	w.interactTicker = time.NewTicker(w.cfg.InteractionInterval)
	defer w.interactTicker.Stop()
	reportTicker := time.NewTicker(w.opt.ReportInterval)
	defer reportTicker.Stop()
	lifetime := time.NewTimer(w.cfg.SessionLength)
	defer lifetime.Stop()

	rampC := w.rampTimer.C
	interactC := w.interactTicker.C
	lifetimeC := lifetime.C
	done := ctx.Done()

	for !w.finished() {
		select {
		case <-rampC:
			w.startSession(opCtx)
			if w.nextIndex > w.cfg.Sessions {
				rampC = nil
			} else {
				w.rampTimer.Reset(ArrivalDelay(w.cfg.Interval, w.nextIndex, w.cfg.Sessions, w.cfg.Shape))
			}
		case <-interactC:
			w.interact(opCtx)
		case <-reportTicker.C:
			w.memoryMB = w.opt.MemorySampler()
			w.report(false)
		case <-lifetimeC:
			lifetimeC = nil
			w.beginRampDown(fmt.Sprintf("Maximum session length of %d ms reached, closing all sessions", w.cfg.SessionLength.Milliseconds()))
		case <-done:
			done = nil
			w.beginRampDown("Shutdown requested, closing all sessions")
		case res := <-w.results:
			w.apply(res)
		}

		if !w.cfg.KeepAlive && w.rampUpComplete() {
			w.beginRampDown("All sessions started, closing all sessions")
		}
		if w.rampingDown {
			rampC, interactC = nil, nil
		}
		w.advanceRampDown(opCtx)
	}

	<-w.rampDownDone
	w.log("Scenario has ended and all sessions are disconnected.")
	return w.exit()
}

// State returns a copy of the counters. Only meaningful once Run returned.
func (w *Worker) State() RunState { return w.state }

func (w *Worker) apply(res result) {
	switch res.op {
	case metrics.OpConnect:
		w.applyConnect(res)
	case metrics.OpInteract:
		w.applyInteract(res)
	case metrics.OpClose:
		w.applyClose(res)
	}
}

func (w *Worker) rampUpComplete() bool {
	return w.nextIndex > w.cfg.Sessions && w.state.Connecting == 0
}

func (w *Worker) finished() bool {
	return w.queueClosed && w.closing == 0 && w.inflight == 0
}

func (w *Worker) exit() int {
	code := 0
	if w.state.Errors > 0 {
		code = 1
	}
	w.logf("Worker with id %d exiting with code %d. Number of errors: %d", w.opt.WorkerID, code, w.state.Errors)
	w.memoryMB = w.opt.MemorySampler()
	w.report(true)
	return code
}

func (w *Worker) snapshot(final bool) metrics.Snapshot {
	return metrics.Snapshot{
		WorkerID:     w.opt.WorkerID,
		PID:          w.opt.PID,
		Started:      w.state.Started,
		Connecting:   w.state.Connecting,
		Active:       w.registry.Len(),
		Opened:       w.state.Opened,
		Closed:       w.state.Closed,
		FailedToOpen: w.state.FailedToOpen,
		Interactions: w.state.Interactions,
		Errors:       w.state.Errors,
		MemoryMB:     w.memoryMB,
		Latency:      w.collector.Latencies(),
		ErrorTypes:   w.collector.ErrorBreakdown(),
		Final:        final,
		Timestamp:    w.opt.Now(),
	}
}

func (w *Worker) report(final bool) {
	snap := w.snapshot(final)
	w.state.LastReport = snap.Timestamp
	_ = w.reporter.ReportSnapshot(snap)
}

func (w *Worker) log(text string) {
	_ = w.reporter.ReportLog(text)
}

func (w *Worker) logf(format string, args ...any) {
	w.log(fmt.Sprintf(format, args...))
}
