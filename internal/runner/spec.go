package runner

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/loadsurge/internal/random"
	"github.com/torosent/loadsurge/internal/scenario"
	"github.com/torosent/loadsurge/internal/tracing"
)

// Spec is everything a worker needs to run, independent of how it was
// spawned. It travels to worker processes as JSON.
type Spec struct {
	ID              int            `json:"id"`
	Run             RunConfig      `json:"run"`
	Scenario        string         `json:"scenario"`
	ScenarioOptions map[string]any `json:"scenarioOptions,omitempty"`
	Tracing         tracing.Config `json:"tracing"`
}

// Encode serializes the spec for transport to a worker process.
func (s Spec) Encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode worker spec: %w", err)
	}
	return string(data), nil
}

// DecodeSpec parses a spec produced by Encode.
func DecodeSpec(data string) (Spec, error) {
	var s Spec
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return Spec{}, fmt.Errorf("decode worker spec: %w", err)
	}
	return s, nil
}

// Execute runs one worker described by spec and returns its exit code.
// Setup failures are reported through reporter and yield exit code 1.
func Execute(ctx context.Context, spec Spec, adapters *scenario.Registry, reporter Reporter, tracer trace.Tracer) int {
	adapter, err := adapters.New(spec.Scenario)
	if err != nil {
		_ = reporter.ReportLog(fmt.Sprintf("Worker %d: %v", spec.ID, err))
		return 1
	}

	w, err := NewWorker(Options{
		WorkerID:       spec.ID,
		Config:         spec.Run,
		Scenario:       spec.Scenario,
		Adapter:        adapter,
		AdapterOptions: spec.ScenarioOptions,
		Stream:         random.New(random.Key(spec.Run.Seed, spec.ID)),
		Reporter:       reporter,
		Tracer:         tracer,
	})
	if err != nil {
		_ = reporter.ReportLog(fmt.Sprintf("Worker %d: %v", spec.ID, err))
		return 1
	}
	return w.Run(ctx)
}
