// Package scenario defines the contract between a worker and the remote
// service it loads. A worker knows nothing about the protocol a scenario
// speaks: it only asks an Adapter to open, exercise and close sessions.
package scenario

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handle is the opaque per-session value returned by Connect and passed back
// to Interact and Close.
type Handle any

// Env is handed to an adapter once, before any session is opened.
type Env struct {
	// WorkerID identifies the worker running the adapter.
	WorkerID int
	// Options holds the scenario specific settings from the run configuration.
	Options map[string]any
	// RandomNumberBetween returns an int in [low, high) drawn from the
	// worker's seeded random stream. Adapters must use it for every random
	// choice so runs stay reproducible.
	RandomNumberBetween func(low, high int) int
	// Log forwards a line to the controller.
	Log func(text string)
}

// Adapter drives one kind of remote session.
type Adapter interface {
	Init(ctx context.Context, env Env) error
	Connect(ctx context.Context, sessionID string) (Handle, error)
	Interact(ctx context.Context, handle Handle) error
	Close(ctx context.Context, handle Handle) error
}

// Factory builds a fresh adapter. Each worker gets its own instance.
type Factory func() Adapter

// Registry maps scenario names to adapter factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name. Registering the same name twice is an
// error.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if factory == nil {
		return fmt.Errorf("scenario %q: factory is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("scenario %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister is like Register but panics on error. Intended for program
// setup where a duplicate name is a programming mistake.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// New creates an adapter for the named scenario.
func (r *Registry) New(name string) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q (available: %v)", name, r.Names())
	}
	return factory(), nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered scenario names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
