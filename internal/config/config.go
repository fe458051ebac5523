package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/torosent/loadsurge/internal/runner"
	"github.com/torosent/loadsurge/internal/tracing"
)

// AutoWorkers asks for one worker per logical CPU.
const AutoWorkers = -1

// Defaults for a run. Durations are given in milliseconds on the command line
// and in config files.
const (
	DefaultWorkers             = 1
	DefaultMax                 = 1
	DefaultInterval            = 60 * time.Millisecond
	DefaultInteractionInterval = 10 * time.Second
	DefaultInteractionRatio    = 0.1
	DefaultSessionLength       = 1_000_000_000 * time.Millisecond
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "console"
)

type Config struct {
	Workers             int            `mapstructure:"workers" yaml:"workers"`
	Max                 int            `mapstructure:"max" yaml:"max"`
	Interval            time.Duration  `mapstructure:"interval" yaml:"interval"`
	Shape               runner.Shape   `mapstructure:"shape" yaml:"shape"`
	InteractionInterval time.Duration  `mapstructure:"interaction_interval" yaml:"interaction_interval"`
	InteractionRatio    float64        `mapstructure:"interaction_ratio" yaml:"interaction_ratio"`
	SessionLength       time.Duration  `mapstructure:"session_length" yaml:"session_length"`
	KeepAlive           bool           `mapstructure:"keep_alive" yaml:"keep_alive"`
	Seed                string         `mapstructure:"seed" yaml:"seed"`
	Exit                bool           `mapstructure:"exit" yaml:"exit"`
	Scenario            string         `mapstructure:"scenario" yaml:"scenario"`
	ScenarioOptions     map[string]any `mapstructure:"scenario_options" yaml:"scenario_options,omitempty"`

	Dashboard   bool   `mapstructure:"dashboard" yaml:"dashboard"`
	JSONOutput  bool   `mapstructure:"json_output" yaml:"json_output"`
	InProcess   bool   `mapstructure:"in_process" yaml:"in_process"`
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr,omitempty"`
	Report      string `mapstructure:"report" yaml:"report,omitempty"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
	LogFile   string `mapstructure:"log_file" yaml:"log_file,omitempty"`

	Tracing tracing.Config `mapstructure:"tracing" yaml:"tracing,omitempty"`

	ConfigFile  string `mapstructure:"-" yaml:"-"`
	PrintConfig bool   `mapstructure:"-" yaml:"-"`
}

// Default returns the configuration used when neither a config file nor a
// flag says otherwise.
func Default() *Config {
	return &Config{
		Workers:             DefaultWorkers,
		Max:                 DefaultMax,
		Interval:            DefaultInterval,
		Shape:               runner.ShapeConstant,
		InteractionInterval: DefaultInteractionInterval,
		InteractionRatio:    DefaultInteractionRatio,
		SessionLength:       DefaultSessionLength,
		KeepAlive:           true,
		ScenarioOptions:     map[string]any{},
		LogLevel:            DefaultLogLevel,
		LogFormat:           DefaultLogFormat,
		Tracing:             tracing.Config{Protocol: "grpc", SampleRate: 1.0},
	}
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if c.Workers != AutoWorkers && c.Workers < 1 {
		issues = append(issues, fmt.Sprintf("workers must be at least 1 or %d (one per CPU), got %d", AutoWorkers, c.Workers))
	}
	if c.Max < 1 {
		issues = append(issues, fmt.Sprintf("max must be at least 1, got %d", c.Max))
	}

	var runErr *runner.ConfigError
	if err := c.RunConfig().Validate(); errors.As(err, &runErr) {
		for _, issue := range runErr.Issues {
			// Sessions mirrors max, reported above.
			if strings.HasPrefix(issue, "sessions") {
				continue
			}
			issues = append(issues, issue)
		}
	}

	if strings.TrimSpace(c.Scenario) == "" {
		issues = append(issues, "scenario is required")
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		issues = append(issues, fmt.Sprintf("log_level: unsupported level %q", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "text", "json":
	default:
		issues = append(issues, fmt.Sprintf("log_format: must be 'console' or 'json', got %q", c.LogFormat))
	}

	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			issues = append(issues, fmt.Sprintf("metrics_addr: %v", err))
		}
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json_output cannot be combined")
	}

	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTracing(t tracing.Config) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}

// EnsureSeed fills in a random seed when none was configured, so every run
// is reproducible from its printed settings.
func (c *Config) EnsureSeed() {
	if strings.TrimSpace(c.Seed) == "" {
		c.Seed = uuid.NewString()
	}
}

// RunConfig is the per-worker run description derived from c.
func (c Config) RunConfig() runner.RunConfig {
	return runner.RunConfig{
		Sessions:            c.Max,
		Interval:            c.Interval,
		Shape:               c.Shape,
		InteractionInterval: c.InteractionInterval,
		InteractionRatio:    c.InteractionRatio,
		SessionLength:       c.SessionLength,
		Seed:                c.Seed,
		KeepAlive:           c.KeepAlive,
	}
}

// WorkerSpec is the spec template handed to every worker; the controller
// fills in the worker id.
func (c Config) WorkerSpec() runner.Spec {
	return runner.Spec{
		Run:             c.RunConfig(),
		Scenario:        c.Scenario,
		ScenarioOptions: c.ScenarioOptions,
		Tracing:         c.Tracing,
	}
}

// Settings lists the resolved configuration as name/value pairs, in display
// order.
func (c Config) Settings() [][2]string {
	workers := fmt.Sprint(c.Workers)
	if c.Workers == AutoWorkers {
		workers = "auto"
	}
	shape := string(c.Shape)
	if shape == "" {
		shape = string(runner.ShapeConstant)
	}
	return [][2]string{
		{"Scenario", c.Scenario},
		{"Workers", workers},
		{"Sessions per worker", fmt.Sprint(c.Max)},
		{"Interval", fmt.Sprintf("%d ms", c.Interval.Milliseconds())},
		{"Arrival shape", shape},
		{"Interaction interval", fmt.Sprintf("%d ms", c.InteractionInterval.Milliseconds())},
		{"Interaction ratio", fmt.Sprintf("%g", c.InteractionRatio)},
		{"Session length", fmt.Sprintf("%d ms", c.SessionLength.Milliseconds())},
		{"Keep alive", fmt.Sprint(c.KeepAlive)},
		{"Seed", c.Seed},
		{"Exit when done", fmt.Sprint(c.Exit)},
	}
}
