package config

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/torosent/loadsurge/internal/runner"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a
// Config. The result is not validated; call Validate.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	return load(configPath, flagSet)
}

// LoadFlags resolves a Config from an already parsed flag set, typically the
// one cobra filled in for a subcommand registered with RegisterFlags.
func (Loader) LoadFlags(fs *pflag.FlagSet) (*Config, error) {
	configPath := ""
	if f := fs.Lookup("config"); f != nil {
		configPath = f.Value.String()
	}
	return load(configPath, fs)
}

func load(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	if cfg.ScenarioOptions == nil {
		cfg.ScenarioOptions = map[string]any{}
	}
	cfg.EnsureSeed()
	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "workers"); ok {
		if s, isString := raw.(string); isString && strings.EqualFold(strings.TrimSpace(s), "auto") {
			cfg.Workers = AutoWorkers
		} else {
			val, err := asInt(raw)
			if err != nil {
				return fmt.Errorf("workers: %w", err)
			}
			cfg.Workers = val
		}
	}

	if raw, ok := lookupSetting(settings, "max"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("max: %w", err)
		}
		cfg.Max = val
	}

	if raw, ok := lookupSetting(settings, "interval"); ok {
		dur, err := asMillis(raw)
		if err != nil {
			return fmt.Errorf("interval: %w", err)
		}
		cfg.Interval = dur
	}

	if raw, ok := lookupSetting(settings, "shape"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("shape: %w", err)
		}
		if err := setShape(cfg, val); err != nil {
			return err
		}
	}

	if raw, ok := lookupSetting(settings, "triangular"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("triangular: %w", err)
		}
		setTriangular(cfg, val)
	}

	if raw, ok := lookupSetting(settings, "interactioninterval", "interaction_interval", "interaction-interval"); ok {
		dur, err := asMillis(raw)
		if err != nil {
			return fmt.Errorf("interaction_interval: %w", err)
		}
		cfg.InteractionInterval = dur
	}

	if raw, ok := lookupSetting(settings, "interactionratio", "interaction_ratio", "interaction-ratio"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("interaction_ratio: %w", err)
		}
		cfg.InteractionRatio = val
	}

	if raw, ok := lookupSetting(settings, "sessionlength", "session_length", "session-length"); ok {
		dur, err := asMillis(raw)
		if err != nil {
			return fmt.Errorf("session_length: %w", err)
		}
		cfg.SessionLength = dur
	}

	if raw, ok := lookupSetting(settings, "keepalive", "keep_alive", "keep-alive"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("keep_alive: %w", err)
		}
		cfg.KeepAlive = val
	}

	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		cfg.Seed = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "exit"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("exit: %w", err)
		}
		cfg.Exit = val
	}

	if raw, ok := lookupSetting(settings, "scenario"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("scenario: %w", err)
		}
		cfg.Scenario = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "scenariooptions", "scenario_options", "scenario-options"); ok {
		opts, err := asOptionMap(raw)
		if err != nil {
			return fmt.Errorf("scenario_options: %w", err)
		}
		if raw, ok := opts["headers"]; ok {
			headers, err := asHeaderMap(raw)
			if err != nil {
				return fmt.Errorf("scenario_options.headers: %w", err)
			}
			opts["headers"] = headers
		}
		cfg.ScenarioOptions = opts
	}

	if err := applyOutputSettings(cfg, settings); err != nil {
		return err
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(cfg, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func applyOutputSettings(cfg *Config, settings map[string]interface{}) error {
	bools := []struct {
		keys   []string
		target *bool
	}{
		{keys: []string{"dashboard"}, target: &cfg.Dashboard},
		{keys: []string{"jsonoutput", "json_output", "json-output"}, target: &cfg.JSONOutput},
		{keys: []string{"inprocess", "in_process", "in-process"}, target: &cfg.InProcess},
	}
	for _, b := range bools {
		if raw, ok := lookupSetting(settings, b.keys...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", b.keys[len(b.keys)-1], err)
			}
			*b.target = val
		}
	}

	strs := []struct {
		keys   []string
		target *string
	}{
		{keys: []string{"metricsaddr", "metrics_addr", "metrics-addr"}, target: &cfg.MetricsAddr},
		{keys: []string{"report"}, target: &cfg.Report},
		{keys: []string{"loglevel", "log_level", "log-level"}, target: &cfg.LogLevel},
		{keys: []string{"logformat", "log_format", "log-format"}, target: &cfg.LogFormat},
		{keys: []string{"logfile", "log_file", "log-file"}, target: &cfg.LogFile},
	}
	for _, s := range strs {
		if raw, ok := lookupSetting(settings, s.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", s.keys[len(s.keys)-1], err)
			}
			*s.target = strings.TrimSpace(val)
		}
	}
	return nil
}

func applyTracingSettings(cfg *Config, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		cfg.Tracing.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		cfg.Tracing.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		cfg.Tracing.Propagate = &val
	}
	return nil
}

func setShape(cfg *Config, value string) error {
	shape, err := runner.ParseShape(strings.ToLower(strings.TrimSpace(value)))
	if err != nil {
		return fmt.Errorf("shape: %w", err)
	}
	cfg.Shape = shape
	return nil
}

func setTriangular(cfg *Config, on bool) {
	if on {
		cfg.Shape = runner.ShapeTriangular
	} else if cfg.Shape == runner.ShapeTriangular {
		cfg.Shape = runner.ShapeConstant
	}
}

// WriteYAML prints the resolved configuration.
func (c Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
