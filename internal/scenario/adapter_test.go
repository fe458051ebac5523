package scenario_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/torosent/loadsurge/internal/scenario"
)

func TestRegistry(t *testing.T) {
	r := scenario.NewRegistry()
	if err := r.Register(scenario.IdleName, scenario.NewIdle); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(scenario.IdleName, scenario.NewIdle); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if err := r.Register("", scenario.NewIdle); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := r.Register("nil", nil); err == nil {
		t.Fatal("expected error for nil factory")
	}
	r.MustRegister("other", scenario.NewIdle)

	if got := r.Names(); !reflect.DeepEqual(got, []string{"idle", "other"}) {
		t.Fatalf("Names() = %v", got)
	}
	if !r.Has("idle") || r.Has("missing") {
		t.Fatal("Has() mismatch")
	}

	a, err := r.New("idle")
	if err != nil || a == nil {
		t.Fatalf("New() = %v, %v", a, err)
	}
	b, _ := r.New("idle")
	if a == b {
		t.Fatal("expected a fresh adapter per call")
	}
	if _, err := r.New("missing"); err == nil {
		t.Fatal("expected error for unknown scenario")
	}
}

func TestIdleAdapter(t *testing.T) {
	ctx := context.Background()
	a := scenario.NewIdle()
	if err := a.Init(ctx, scenario.Env{Options: map[string]any{"think": "1ms"}}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	h, err := a.Connect(ctx, "abc")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := a.Interact(ctx, h); err != nil {
		t.Fatalf("Interact() error = %v", err)
	}
	if err := a.Close(ctx, h); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := a.Interact(ctx, "bogus"); err == nil {
		t.Fatal("expected error for foreign handle")
	}
}

func TestIdleAdapterRejectsBadThink(t *testing.T) {
	a := scenario.NewIdle()
	if err := a.Init(context.Background(), scenario.Env{Options: map[string]any{"think": "soon"}}); err == nil {
		t.Fatal("expected error for invalid think option")
	}
}

func TestDurationOption(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    time.Duration
		wantErr bool
	}{
		{name: "missing", value: nil, want: 5 * time.Second},
		{name: "millis int", value: 250, want: 250 * time.Millisecond},
		{name: "millis float", value: 1.5, want: 1500 * time.Microsecond},
		{name: "millis string", value: "100", want: 100 * time.Millisecond},
		{name: "go duration", value: "2s", want: 2 * time.Second},
		{name: "invalid", value: "later", wantErr: true},
		{name: "unsupported", value: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := map[string]any{}
			if tt.value != nil {
				opts["d"] = tt.value
			}
			got, err := scenario.DurationOption(opts, "d", 5*time.Second)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSliceAndMapOptions(t *testing.T) {
	opts := map[string]any{
		"csv":     "a, b,,c",
		"list":    []any{"x", 2},
		"headers": map[string]any{"X-A": "1", "X-B": 2},
		"n":       "7",
	}
	if got := scenario.StringSliceOption(opts, "csv"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("csv = %v", got)
	}
	if got := scenario.StringSliceOption(opts, "list"); !reflect.DeepEqual(got, []string{"x", "2"}) {
		t.Fatalf("list = %v", got)
	}
	if got := scenario.StringMapOption(opts, "headers"); !reflect.DeepEqual(got, map[string]string{"X-A": "1", "X-B": "2"}) {
		t.Fatalf("headers = %v", got)
	}
	if n, err := scenario.IntOption(opts, "n", 0); err != nil || n != 7 {
		t.Fatalf("IntOption = %d, %v", n, err)
	}
	if got := scenario.StringOption(opts, "missing", "def"); got != "def" {
		t.Fatalf("StringOption = %q", got)
	}
}
