package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/torosent/loadsurge/internal/config"
	"github.com/torosent/loadsurge/internal/controller"
	"github.com/torosent/loadsurge/internal/dashboard"
	"github.com/torosent/loadsurge/internal/logging"
	"github.com/torosent/loadsurge/internal/output"
	"github.com/torosent/loadsurge/internal/scenario"
	"github.com/torosent/loadsurge/internal/scenario/httpscenario"
	"github.com/torosent/loadsurge/internal/scenario/wsscenario"
	"github.com/torosent/loadsurge/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

// app carries what the commands share; tests swap the writers.
type app struct {
	stdout   io.Writer
	stderr   io.Writer
	adapters *scenario.Registry
	code     int
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr, adapters: newRegistry()}
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return a.code
}

func newRegistry() *scenario.Registry {
	r := scenario.NewRegistry()
	r.MustRegister(scenario.IdleName, scenario.NewIdle)
	r.MustRegister(wsscenario.Name, wsscenario.New)
	r.MustRegister(httpscenario.Name, httpscenario.New)
	return r
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "loadsurge",
		Short:         "Open, exercise and close many concurrent sessions against a target",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().NFlag() == 0 {
				return cmd.Help()
			}
			return a.run(cmd)
		},
	}
	config.RegisterFlags(cmd)
	cmd.AddCommand(newWorkerCommand(a))
	return cmd
}

func (a *app) run(cmd *cobra.Command) error {
	cfg, err := config.NewLoader().LoadFlags(cmd.Flags())
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if cfg.PrintConfig {
		return cfg.WriteYAML(a.stdout)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !a.adapters.Has(cfg.Scenario) {
		return fmt.Errorf("unknown scenario %q (available: %s)", cfg.Scenario, strings.Join(a.adapters.Names(), ", "))
	}

	logger, closeLog, err := logging.New(loggingConfig(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runID := controller.NewRunID()
	view := controller.NewView(controller.DefaultLogLines)
	view.SetSettings(settings(cfg, runID))

	spawner, stopTracing, err := a.spawner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stopTracing()

	ctrl, err := controller.New(controller.Options{
		Workers: cfg.Workers,
		Spec:    cfg.WorkerSpec(),
		Spawner: spawner,
		View:    view,
		Logger:  logger,
		Exit:    cfg.Exit,
		RunID:   runID,
	})
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srv, err := controller.StartMetricsServer(cfg.MetricsAddr, controller.NewExporter(view, runID))
		if err != nil {
			return err
		}
		logger.Info("serving metrics", zap.String("addr", srv.Addr()))
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown", zap.Error(err))
			}
		}()
	}

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(view, cancel)
		if err != nil {
			return err
		}
		dash.Start()
	}

	var progress *output.ProgressReporter
	if !cfg.JSONOutput && !cfg.Dashboard {
		progress = output.NewProgressReporter(view, progressInterval, a.stdout)
		progress.Start()
	}

	code := ctrl.Run(ctx)

	if dash != nil {
		dash.Stop()
	}
	if progress != nil {
		progress.Stop()
		fmt.Fprintln(a.stdout)
	}

	report := output.BuildReport(runID, view, time.Now())
	if cfg.JSONOutput {
		if err := output.PrintJSONReport(a.stdout, report); err != nil {
			return err
		}
	} else {
		output.PrintReport(a.stdout, report)
	}

	if cfg.Report != "" {
		reportCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := output.WriteReportFile(reportCtx, cfg.Report, report); err != nil {
			return err
		}
		logger.Info("report written", zap.String("path", cfg.Report))
	}

	a.code = code
	return nil
}

// spawner picks how workers run. In-process workers share one tracer
// provider; worker processes set up their own.
func (a *app) spawner(ctx context.Context, cfg *config.Config, logger *zap.Logger) (controller.Spawner, func(), error) {
	if !cfg.InProcess {
		return &controller.ProcessSpawner{}, func() {}, nil
	}
	provider, err := tracing.Init(ctx, cfg.Tracing, -1)
	if err != nil {
		return nil, nil, err
	}
	stop := func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}
	return &controller.InProcessSpawner{Adapters: a.adapters, Tracer: provider.Tracer()}, stop, nil
}

func loggingConfig(cfg *config.Config) *logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = cfg.LogLevel
	lc.Format = cfg.LogFormat
	switch {
	case cfg.LogFile != "":
		lc.Output = cfg.LogFile
	case cfg.Dashboard:
		// The terminal belongs to the dashboard.
		lc.Output = logging.OutputDiscard
	}
	return lc
}

func settings(cfg *config.Config, runID string) []controller.Setting {
	pairs := cfg.Settings()
	out := make([]controller.Setting, 0, len(pairs)+1)
	out = append(out, controller.Setting{Name: "Run", Value: runID})
	for _, p := range pairs {
		out = append(out, controller.Setting{Name: p[0], Value: p[1]})
	}
	return out
}
