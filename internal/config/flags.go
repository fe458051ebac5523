package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all run flags on a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "loadsurge",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Load shape
	flags.IntP("workers", "t", DefaultWorkers, "Number of workers (-1 = one per CPU)")
	flags.IntP("max", "m", DefaultMax, "Sessions to open per worker")
	flags.IntP("interval", "i", int(DefaultInterval.Milliseconds()), "Mean delay between session starts in ms")
	flags.Bool("triangular", false, "Use the triangular arrival shape (shorthand for --shape triangular)")
	flags.String("shape", "constant", "Arrival shape: 'constant' or 'triangular'")
	flags.Int64("interaction-interval", DefaultInteractionInterval.Milliseconds(), "Delay between interaction rounds in ms")
	flags.Float64("interaction-ratio", DefaultInteractionRatio, "Fraction of open sessions used per interaction round (0..1)")
	flags.Int64("session-length", DefaultSessionLength.Milliseconds(), "Run lifetime in ms before all sessions are closed")
	flags.Bool("keep-alive", true, "Keep sessions open after ramp-up until the session length is reached")
	flags.String("seed", "", "Seed for the random stream (generated when empty)")
	flags.Bool("exit", false, "Exit once all workers have finished instead of waiting for an interrupt")

	// Scenario
	flags.String("scenario", "", "Registered scenario name (idle, websocket, http)")
	flags.StringToString("scenario-option", nil, "Scenario option key=value (repeatable)")

	// Output
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.Bool("json-output", false, "Emit the final report as JSON")
	flags.Bool("in-process", false, "Run workers as goroutines instead of child processes")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.String("report", "", "Write the final report to this file")
	flags.String("log-level", DefaultLogLevel, "Log level: debug, info, warn or error")
	flags.String("log-format", DefaultLogFormat, "Log format: console or json")
	flags.String("log-file", "", "Write logs to this file instead of stderr")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")
	flags.Bool("print-config", false, "Print the resolved configuration as YAML and exit")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint; tracing is off when empty")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.String("tracing-service-name", "", "Service name reported on spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of sessions traced (0..1)")
	flags.Bool("tracing-insecure", false, "Disable TLS to the collector")
	flags.Bool("tracing-propagate", true, "Inject W3C trace headers into scenario requests")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("workers") {
		val, err := fs.GetInt("workers")
		if err != nil {
			return err
		}
		cfg.Workers = val
	}
	if fs.Changed("max") {
		val, err := fs.GetInt("max")
		if err != nil {
			return err
		}
		cfg.Max = val
	}
	if fs.Changed("interval") {
		val, err := fs.GetInt("interval")
		if err != nil {
			return err
		}
		cfg.Interval, _ = asMillis(val)
	}
	if fs.Changed("shape") {
		val, err := fs.GetString("shape")
		if err != nil {
			return err
		}
		if err := setShape(cfg, val); err != nil {
			return err
		}
	}
	if fs.Changed("triangular") {
		val, err := fs.GetBool("triangular")
		if err != nil {
			return err
		}
		setTriangular(cfg, val)
	}
	if fs.Changed("interaction-interval") {
		val, err := fs.GetInt64("interaction-interval")
		if err != nil {
			return err
		}
		cfg.InteractionInterval, _ = asMillis(val)
	}
	if fs.Changed("interaction-ratio") {
		val, err := fs.GetFloat64("interaction-ratio")
		if err != nil {
			return err
		}
		cfg.InteractionRatio = val
	}
	if fs.Changed("session-length") {
		val, err := fs.GetInt64("session-length")
		if err != nil {
			return err
		}
		cfg.SessionLength, _ = asMillis(val)
	}
	if fs.Changed("keep-alive") {
		val, err := fs.GetBool("keep-alive")
		if err != nil {
			return err
		}
		cfg.KeepAlive = val
	}
	if fs.Changed("seed") {
		val, err := fs.GetString("seed")
		if err != nil {
			return err
		}
		cfg.Seed = strings.TrimSpace(val)
	}
	if fs.Changed("exit") {
		val, err := fs.GetBool("exit")
		if err != nil {
			return err
		}
		cfg.Exit = val
	}
	if fs.Changed("scenario") {
		val, err := fs.GetString("scenario")
		if err != nil {
			return err
		}
		cfg.Scenario = strings.TrimSpace(val)
	}
	if fs.Changed("scenario-option") {
		val, err := fs.GetStringToString("scenario-option")
		if err != nil {
			return err
		}
		if cfg.ScenarioOptions == nil {
			cfg.ScenarioOptions = map[string]any{}
		}
		for k, v := range val {
			key := strings.TrimSpace(k)
			if key == "" {
				return fmt.Errorf("scenario-option: key cannot be empty")
			}
			cfg.ScenarioOptions[key] = v
		}
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("in-process") {
		val, err := fs.GetBool("in-process")
		if err != nil {
			return err
		}
		cfg.InProcess = val
	}
	if fs.Changed("metrics-addr") {
		val, err := fs.GetString("metrics-addr")
		if err != nil {
			return err
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}
	if fs.Changed("report") {
		val, err := fs.GetString("report")
		if err != nil {
			return err
		}
		cfg.Report = strings.TrimSpace(val)
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = strings.TrimSpace(val)
	}
	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.LogFormat = strings.TrimSpace(val)
	}
	if fs.Changed("log-file") {
		val, err := fs.GetString("log-file")
		if err != nil {
			return err
		}
		cfg.LogFile = strings.TrimSpace(val)
	}
	if fs.Changed("print-config") {
		val, err := fs.GetBool("print-config")
		if err != nil {
			return err
		}
		cfg.PrintConfig = val
	}
	return applyTracingFlags(cfg, fs)
}

func applyTracingFlags(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}
	return nil
}
