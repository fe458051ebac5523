package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/torosent/loadsurge/internal/controller"
	"github.com/torosent/loadsurge/internal/ipc"
	"github.com/torosent/loadsurge/internal/runner"
	"github.com/torosent/loadsurge/internal/tracing"
)

// newWorkerCommand is the entry point of a worker process. The controller
// passes the spec in the environment and reads reports from stdout.
func newWorkerCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Run a single worker (started by the controller)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw := os.Getenv(controller.SpecEnv)
			if raw == "" {
				return errors.New("worker: " + controller.SpecEnv + " is not set")
			}
			spec, err := runner.DecodeSpec(raw)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			reporter := ipc.NewWriter(a.stdout, spec.ID)
			provider, err := tracing.Init(ctx, spec.Tracing, spec.ID)
			if err != nil {
				_ = reporter.ReportLog(fmt.Sprintf("Worker %d: tracing disabled: %v", spec.ID, err))
				provider = nil
			}
			defer func() { _ = provider.Shutdown(context.Background()) }()

			a.code = runner.Execute(ctx, spec, a.adapters, reporter, provider.Tracer())
			return nil
		},
	}
}
