// Package controller spawns workers, collects their reports into a View and
// decides the exit code of a run.
package controller

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/loadsurge/internal/ipc"
	"github.com/torosent/loadsurge/internal/runner"
)

// Options configure a Controller.
type Options struct {
	Workers int         // worker count; -1 or 0 means one per CPU
	Spec    runner.Spec // template; ID is set per worker
	Spawner Spawner
	View    *View // optional; created when nil
	Logger  *zap.Logger
	Exit    bool   // return the aggregate code once workers exit instead of holding
	RunID   string // generated when empty
}

// Controller supervises one run.
type Controller struct {
	opt    Options
	view   *View
	logger *zap.Logger
}

// ResolveWorkers maps the configured worker count to a concrete one.
func ResolveWorkers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

func New(opt Options) (*Controller, error) {
	if opt.Spawner == nil {
		return nil, errors.New("controller: spawner is required")
	}
	if err := opt.Spec.Run.Validate(); err != nil {
		return nil, err
	}
	if opt.Spec.Scenario == "" {
		return nil, errors.New("controller: scenario is required")
	}
	opt.Workers = ResolveWorkers(opt.Workers)
	if opt.View == nil {
		opt.View = NewView(DefaultLogLines)
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	if opt.RunID == "" {
		opt.RunID = NewRunID()
	}
	return &Controller{opt: opt, view: opt.View, logger: opt.Logger}, nil
}

// NewRunID returns a lexically sortable identifier for a run.
func NewRunID() string {
	return ulid.Make().String()
}

// RunID identifies this run in logs, metrics and reports.
func (c *Controller) RunID() string { return c.opt.RunID }

// View returns the live aggregate of the run.
func (c *Controller) View() *View { return c.view }

// Workers returns the resolved worker count.
func (c *Controller) Workers() int { return c.opt.Workers }

// Run spawns all workers and supervises them until they exit. With Exit set
// it then returns the aggregate exit code; otherwise it holds until ctx is
// done and returns 0. Cancelling ctx asks workers to ramp down.
func (c *Controller) Run(ctx context.Context) int {
	c.logger.Info("starting run",
		zap.String("run_id", c.opt.RunID),
		zap.Int("workers", c.opt.Workers),
		zap.String("scenario", c.opt.Spec.Scenario),
		zap.Int("sessions_per_worker", c.opt.Spec.Run.Sessions),
	)

	var g errgroup.Group
	for id := 1; id <= c.opt.Workers; id++ {
		spec := c.opt.Spec
		spec.ID = id

		handle, err := c.opt.Spawner.Spawn(ctx, spec)
		if err != nil {
			c.logger.Error("failed to start worker", zap.Int("worker_id", id), zap.Error(err))
			c.view.AddLog(id, fmt.Sprintf("Failed to start worker: %v", err))
			c.view.MarkExited(id, ExitStatus{Code: 1, Err: err})
			continue
		}
		c.view.Register(id, handle.PID())
		c.logger.Debug("worker started", zap.Int("worker_id", id), zap.Int("pid", handle.PID()))

		g.Go(func() error {
			c.supervise(id, handle)
			return nil
		})
	}
	_ = g.Wait()

	code := c.view.ExitCode()
	c.logger.Info("All workers have exited", zap.Int("exit_code", code))
	c.view.AddLog(0, "All workers have exited")

	if !c.opt.Exit {
		<-ctx.Done()
		return 0
	}
	return code
}

func (c *Controller) supervise(id int, handle Handle) {
	for msg := range handle.Messages() {
		switch msg.Type {
		case ipc.TypeInfo:
			snap, err := msg.Snapshot()
			if err != nil {
				c.logger.Warn("invalid worker snapshot", zap.Int("worker_id", id), zap.Error(err))
				continue
			}
			snap.WorkerID = id
			c.view.UpdateSnapshot(id, snap)
		case ipc.TypeLog:
			text, err := msg.Text()
			if err != nil {
				c.logger.Warn("invalid worker log", zap.Int("worker_id", id), zap.Error(err))
				continue
			}
			c.view.AddLog(id, text)
			c.logger.Info(text, zap.Int("worker_id", id))
		}
	}

	status := handle.Wait()
	c.view.MarkExited(id, status)

	worker, _ := c.view.Worker(id)
	switch {
	case !worker.Completed():
		c.logger.Warn("Worker exited without completing its run",
			zap.Int("worker_id", id), zap.Stringer("status", status))
		c.view.AddLog(id, fmt.Sprintf("Worker exited unexpectedly (%s)", status))
	case !status.Success():
		c.logger.Warn("Worker exited with nonzero code",
			zap.Int("worker_id", id), zap.Stringer("status", status))
		c.view.AddLog(id, fmt.Sprintf("Worker %d died (%s)", id, status))
	default:
		c.logger.Debug("worker exited", zap.Int("worker_id", id))
	}
}
