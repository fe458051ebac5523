package runner

import (
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/loadsurge/internal/metrics"
	"github.com/torosent/loadsurge/internal/random"
	"github.com/torosent/loadsurge/internal/scenario"
)

// DefaultReportInterval is the cadence of periodic snapshots.
const DefaultReportInterval = time.Second

// RunConfig is the validated, read-only description of one worker's run.
type RunConfig struct {
	Sessions            int           `json:"sessions"`            // sessions to open
	Interval            time.Duration `json:"interval"`            // mean delay between session starts
	Shape               Shape         `json:"shape"`               // arrival shape
	InteractionInterval time.Duration `json:"interactionInterval"` // period of the interaction ticker
	InteractionRatio    float64       `json:"interactionRatio"`    // fraction of active sessions touched per tick
	SessionLength       time.Duration `json:"sessionLength"`       // lifetime before ramp-down
	Seed                string        `json:"seed,omitempty"`
	KeepAlive           bool          `json:"keepAlive"` // hold sessions after ramp-up until the lifetime expires
}

// Validate reports every problem at once.
func (c RunConfig) Validate() error {
	var issues []string
	if c.Sessions < 1 {
		issues = append(issues, "sessions must be at least 1")
	}
	if c.Interval < 0 {
		issues = append(issues, "interval must be non-negative")
	}
	if _, err := ParseShape(string(c.Shape)); err != nil {
		issues = append(issues, err.Error())
	}
	if c.InteractionInterval <= 0 {
		issues = append(issues, "interaction interval must be positive")
	}
	if c.InteractionRatio < 0 || c.InteractionRatio > 1 {
		issues = append(issues, fmt.Sprintf("interaction ratio must be between 0 and 1, got %g", c.InteractionRatio))
	}
	if c.SessionLength <= 0 {
		issues = append(issues, "session length must be positive")
	}
	if len(issues) > 0 {
		return &ConfigError{Issues: issues}
	}
	return nil
}

// Reporter receives everything a worker publishes to its controller.
type Reporter interface {
	ReportSnapshot(snap metrics.Snapshot) error
	ReportLog(text string) error
}

// Options configure a Worker.
type Options struct {
	WorkerID       int
	PID            int // defaults to os.Getpid()
	Config         RunConfig
	Scenario       string // scenario name, used for span names
	Adapter        scenario.Adapter
	AdapterOptions map[string]any
	Stream         *random.Stream // defaults to a stream keyed by seed and worker id
	Reporter       Reporter
	Tracer         trace.Tracer     // optional; no-op when nil
	MemorySampler  func() float64   // optional; resident memory in MB
	ReportInterval time.Duration    // optional; defaults to DefaultReportInterval
	Now            func() time.Time // optional injection for tests
}

func (o *Options) normalize() {
	if o.PID == 0 {
		o.PID = os.Getpid()
	}
	if o.Config.Shape == "" {
		o.Config.Shape = ShapeConstant
	}
	if o.Stream == nil {
		o.Stream = random.New(random.Key(o.Config.Seed, o.WorkerID))
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("loadsurge")
	}
	if o.MemorySampler == nil {
		pid := o.PID
		o.MemorySampler = func() float64 { return metrics.ResidentMemoryMB(pid) }
	}
	if o.ReportInterval <= 0 {
		o.ReportInterval = DefaultReportInterval
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}
