// Package registry implements the static function-reference registry of
// Design Notes section 9: in a dynamically-importing source language,
// Work.Function is a dotted module path resolved at call time; in a
// statically compiled target it becomes a name registered up front.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/chime-frb/workflow-go/pkg/models"
)

// Function is a registered Work function. It returns the triple the
// runner merges into the Work (results, products, plots) per spec.md
// section 4.3 point 3.
type Function interface {
	Execute(ctx context.Context, work *models.Work, parameters map[string]any) (results map[string]any, products, plots []string, err error)
}

// FuncFunction adapts a plain function to Function for callables with no
// declared defaults.
type FuncFunction func(ctx context.Context, work *models.Work, parameters map[string]any) (results map[string]any, products, plots []string, err error)

// Execute implements Function.
func (f FuncFunction) Execute(ctx context.Context, work *models.Work, parameters map[string]any) (map[string]any, []string, []string, error) {
	return f(ctx, work, parameters)
}

// Defaulter is the CLI-wrapper-merging introspection hook of Design
// Notes section 9: a Function may optionally declare its own default
// parameter table, merged with Work.Parameters before invocation
// (explicit parameters win, nil-valued defaults are dropped).
type Defaulter interface {
	Defaults() map[string]any
}

// ArgSource selects how a registered function receives its input.
type ArgSource int

const (
	// ArgSourceKwargs passes the merged parameter map as keyword
	// arguments (spec.md section 4.3 point 3, "arg_source").
	ArgSourceKwargs ArgSource = iota
	// ArgSourceWork passes the full Work object.
	ArgSourceWork
)

type entry struct {
	fn        Function
	argSource ArgSource
}

// Registry is a name -> Function lookup table populated at process
// start, the static analogue of dotted dynamic imports.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register binds name to fn with the given arg source. Re-registering a
// name replaces the previous binding.
func (r *Registry) Register(name string, fn Function, argSource ArgSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry{fn: fn, argSource: argSource}
}

// ErrNotFound is returned when Work.Function names no registered callable.
type ErrNotFound struct{ Name string }

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("function %q is not registered", e.Name)
}

// Resolve looks up name and merges its declared defaults (if any) with
// parameters per Design Notes section 9, returning a callable ready to
// invoke plus the arg source that determines how the runner calls it.
func (r *Registry) Resolve(name string, parameters map[string]any) (Function, map[string]any, ArgSource, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, 0, &ErrNotFound{Name: name}
	}

	merged := parameters
	if d, ok := e.fn.(Defaulter); ok {
		merged = MergeDefaults(d.Defaults(), parameters)
	}
	return e.fn, merged, e.argSource, nil
}

// MergeDefaults implements the CLI-wrapper merge rule: explicit
// parameters override defaults; nil-valued defaults are dropped.
func MergeDefaults(defaults, parameters map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(parameters))
	for k, v := range defaults {
		if v == nil {
			continue
		}
		out[k] = v
	}
	for k, v := range parameters {
		out[k] = v
	}
	return out
}
