package runner

import (
	"context"
	"time"

	"github.com/torosent/loadsurge/internal/metrics"
	"github.com/torosent/loadsurge/internal/scenario"
	"github.com/torosent/loadsurge/internal/tracing"
)

// result is posted back to the event loop when an adapter call returns.
type result struct {
	op      metrics.Op
	session *Session
	handle  scenario.Handle
	tick    int
	latency time.Duration
	err     error
}

// startSession opens the next session in ramp-up order without waiting for
// the connect to finish.
func (w *Worker) startSession(ctx context.Context) {
	index := w.nextIndex
	w.nextIndex++

	s := newSession(w.stream.GUID(), index, w.opt.Now())
	w.move(s, StateConnecting)
	w.state.Started++
	w.state.Connecting++

	go func() {
		start := time.Now()
		spanCtx, span := tracing.StartSessionSpan(ctx, w.opt.Tracer, string(metrics.OpConnect), w.opt.Scenario, s.ID, w.opt.WorkerID)
		handle, err := w.adapter.Connect(spanCtx, s.ID)
		tracing.EndSpan(span, err)
		w.results <- result{op: metrics.OpConnect, session: s, handle: handle, latency: time.Since(start), err: err}
	}()
}

func (w *Worker) applyConnect(res result) {
	s := res.session
	w.state.Connecting--
	w.collector.Record(metrics.OpConnect, res.latency, res.err)

	if res.err != nil {
		w.move(s, StateFailed)
		s.Failures++
		w.state.FailedToOpen++
		w.state.Errors++
		w.logf("Error occurred while connecting: %v", &ConnectError{SessionID: s.ID, Err: res.err})
		w.report(false)
		return
	}

	s.Handle = res.handle
	w.move(s, StateActive)
	w.registry.Add(s)
	w.state.Opened++
	if w.draining {
		// Opened after ramp-down already queued the registry.
		w.enqueueClose(s)
	}
	w.report(false)
}

func (w *Worker) applyClose(res result) {
	s := res.session
	w.closing--
	w.collector.Record(metrics.OpClose, res.latency, res.err)

	w.move(s, StateClosed)
	w.registry.Remove(s.ID)
	w.state.Closed++
	if res.err != nil {
		s.Failures++
		w.logf("%v", &DisconnectError{SessionID: s.ID, Err: res.err})
	} else {
		w.logf("Disconnected session %s", s.ID)
	}
	w.report(false)
}

func (w *Worker) move(s *Session, to State) {
	if err := s.transition(to); err != nil {
		w.logf("%v", err)
	}
}
