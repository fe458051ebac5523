package tracing

// Config controls OpenTelemetry span export for session operations.
type Config struct {
	Endpoint    string  `mapstructure:"endpoint" json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Protocol    string  `mapstructure:"protocol" json:"protocol,omitempty" yaml:"protocol,omitempty"`
	ServiceName string  `mapstructure:"service_name" json:"serviceName,omitempty" yaml:"service_name,omitempty"`
	SampleRate  float64 `mapstructure:"sample_rate" json:"sampleRate,omitempty" yaml:"sample_rate,omitempty"`
	Insecure    bool    `mapstructure:"insecure" json:"insecure,omitempty" yaml:"insecure,omitempty"`
	Propagate   *bool   `mapstructure:"propagate" json:"propagate,omitempty" yaml:"propagate,omitempty"`
}

// Enabled reports whether an exporter endpoint is configured.
func (c Config) Enabled() bool {
	return c.Endpoint != ""
}

// ShouldPropagate defaults to true when tracing is enabled.
func (c Config) ShouldPropagate() bool {
	if c.Propagate != nil {
		return *c.Propagate
	}
	return c.Enabled()
}
