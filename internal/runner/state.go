package runner

import "time"

// RunState holds a worker's counters. Only the worker's event loop mutates it.
type RunState struct {
	Started      int64
	Connecting   int64
	Opened       int64
	Closed       int64
	FailedToOpen int64
	Interactions int64
	Errors       int64
	LastReport   time.Time
}

// tickLedger tracks the interactions dispatched by one tick of the
// interaction ticker.
type tickLedger struct {
	id        int
	pending   int
	succeeded int
	failed    int
}
