package scenario

import (
	"context"
	"fmt"
	"time"
)

// IdleName is the registry name of the idle adapter.
const IdleName = "idle"

// Idle opens sessions that perform no I/O. It is useful for smoke runs and
// for measuring the harness itself. The optional "think" option (duration
// string or milliseconds) delays every call.
type Idle struct {
	think time.Duration
}

type idleSession struct {
	id string
}

func NewIdle() Adapter { return &Idle{} }

func (a *Idle) Init(_ context.Context, env Env) error {
	think, err := DurationOption(env.Options, "think", 0)
	if err != nil {
		return fmt.Errorf("idle scenario: %w", err)
	}
	a.think = think
	return nil
}

func (a *Idle) Connect(ctx context.Context, sessionID string) (Handle, error) {
	if err := a.pause(ctx); err != nil {
		return nil, err
	}
	return &idleSession{id: sessionID}, nil
}

func (a *Idle) Interact(ctx context.Context, handle Handle) error {
	if _, ok := handle.(*idleSession); !ok {
		return fmt.Errorf("idle scenario: unexpected handle %T", handle)
	}
	return a.pause(ctx)
}

func (a *Idle) Close(ctx context.Context, handle Handle) error {
	if _, ok := handle.(*idleSession); !ok {
		return fmt.Errorf("idle scenario: unexpected handle %T", handle)
	}
	return a.pause(ctx)
}

func (a *Idle) pause(ctx context.Context) error {
	if a.think <= 0 {
		return nil
	}
	timer := time.NewTimer(a.think)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
