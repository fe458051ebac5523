package runner

import (
	"context"
	"math"
	"time"

	"github.com/torosent/loadsurge/internal/metrics"
	"github.com/torosent/loadsurge/internal/tracing"
)

// interact runs one tick of the interaction loop: ceil(active*ratio)
// sessions are drawn with replacement from the registry and exercised
// concurrently. All targets are drawn before the first adapter call, since
// adapters draw from the same stream. It returns the targets in draw order.
func (w *Worker) interact(ctx context.Context) []*Session {
	active := w.registry.Len()
	if active == 0 {
		w.log("No sessions to interact with")
		return nil
	}
	count := int(math.Ceil(float64(active) * w.cfg.InteractionRatio))
	if count == 0 {
		return nil
	}

	targets := make([]*Session, count)
	for i := range targets {
		targets[i] = w.registry.At(w.stream.Next(0, active))
	}

	w.tickSeq++
	tick := &tickLedger{id: w.tickSeq, pending: count}
	w.ticks[tick.id] = tick

	for _, s := range targets {
		w.inflight++
		go func() {
			start := time.Now()
			spanCtx, span := tracing.StartSessionSpan(ctx, w.opt.Tracer, string(metrics.OpInteract), w.opt.Scenario, s.ID, w.opt.WorkerID)
			err := w.adapter.Interact(spanCtx, s.Handle)
			tracing.EndSpan(span, err)
			w.results <- result{op: metrics.OpInteract, session: s, tick: tick.id, latency: time.Since(start), err: err}
		}()
	}
	return targets
}

func (w *Worker) applyInteract(res result) {
	w.inflight--
	w.collector.Record(metrics.OpInteract, res.latency, res.err)

	tick := w.ticks[res.tick]
	if res.err != nil {
		res.session.Failures++
		w.state.Errors++
		w.logf("Interaction failed: %v", &InteractError{SessionID: res.session.ID, Err: res.err})
		if tick != nil {
			tick.failed++
		}
	} else {
		w.state.Interactions++
		if tick != nil {
			tick.succeeded++
		}
	}

	if tick == nil {
		return
	}
	tick.pending--
	if tick.pending == 0 {
		delete(w.ticks, tick.id)
		w.report(false)
	}
}
