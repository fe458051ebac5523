// Package runner is the per-worker load engine.
//
// A [Worker] owns one session registry and drives it through a run:
//
//   - ramp-up starts the configured number of sessions, spacing them with
//     [ArrivalDelay] (constant or triangular arrival shape);
//   - an interaction ticker exercises a random subset of active sessions;
//   - a one second report ticker emits [metrics.Snapshot] values;
//   - when the session lifetime elapses (or, without keep-alive, once ramp-up
//     completes) sessions are closed one by one with paced ramp-down.
//
// All mutable state is owned by the worker's event loop goroutine. Adapter
// calls run on their own goroutines and post results back to the loop, so
// counters never need locks.
//
// # Basic Usage
//
//	w, err := runner.NewWorker(runner.Options{
//		WorkerID: 1,
//		Config:   cfg,
//		Adapter:  adapter,
//		Stream:   random.New(random.Key(cfg.Seed, 1)),
//		Reporter: reporter,
//	})
//	if err != nil {
//		return err
//	}
//	code := w.Run(ctx)
//
// The exit code is 0 when the run finished without errors and 1 otherwise.
//
// # Errors
//
// Session failures are wrapped in [ConnectError], [InteractError] and
// [DisconnectError] and reported through the worker log. They never abort a
// run.
package runner
