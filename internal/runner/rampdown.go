package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/loadsurge/internal/metrics"
	"github.com/torosent/loadsurge/internal/tracing"
)

// RampDownDelay is the pause between two closes: ten mean arrival intervals
// spread across the sessions being closed.
func RampDownDelay(interval time.Duration, sessions int) time.Duration {
	if sessions < 1 {
		sessions = 1
	}
	return 10 * interval / time.Duration(sessions)
}

// beginRampDown stops ramp-up and the interaction ticker. Safe to call more
// than once; only the first call has an effect.
func (w *Worker) beginRampDown(reason string) {
	if w.rampingDown {
		return
	}
	w.rampingDown = true
	w.log(reason)
	if w.rampTimer != nil {
		w.rampTimer.Stop()
	}
	if w.interactTicker != nil {
		w.interactTicker.Stop()
	}
}

// advanceRampDown queues open sessions for closing once no interaction is
// in flight, and closes the queue once no connect is pending.
func (w *Worker) advanceRampDown(ctx context.Context) {
	if !w.rampingDown {
		return
	}
	if !w.draining {
		if w.inflight > 0 {
			return
		}
		w.draining = true
		w.closeQueue = make(chan *Session, w.cfg.Sessions)
		w.rampDownDone = make(chan struct{})
		go w.rampDown(ctx, RampDownDelay(w.cfg.Interval, w.registry.Len()), w.closeQueue, w.rampDownDone)
		for _, s := range w.registry.Sessions() {
			w.enqueueClose(s)
		}
	}
	if !w.queueClosed && w.state.Connecting == 0 {
		close(w.closeQueue)
		w.queueClosed = true
	}
}

func (w *Worker) enqueueClose(s *Session) {
	w.move(s, StateDisconnecting)
	w.closing++
	w.closeQueue <- s
}

// rampDown closes sessions one at a time, paced by delay. ctx must not be
// cancellable: a started ramp-down always runs to completion.
func (w *Worker) rampDown(ctx context.Context, delay time.Duration, queue <-chan *Session, done chan<- struct{}) {
	defer close(done)

	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	for s := range queue {
		_ = limiter.Wait(ctx)
		start := time.Now()
		spanCtx, span := tracing.StartSessionSpan(ctx, w.opt.Tracer, string(metrics.OpClose), w.opt.Scenario, s.ID, w.opt.WorkerID)
		err := w.adapter.Close(spanCtx, s.Handle)
		tracing.EndSpan(span, err)
		w.results <- result{op: metrics.OpClose, session: s, latency: time.Since(start), err: err}
	}
}
