package config

import (
	"sync"

	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/core/valuation"
)

// Runtime holds the engine options a running server uses. Handlers read a
// snapshot per request; the config endpoint may swap the grid at runtime.
type Runtime struct {
	mu   sync.RWMutex
	opts pipeline.Options
}

func NewRuntime(opts pipeline.Options) *Runtime {
	return &Runtime{opts: opts}
}

// Options returns a copy of the current engine options.
func (r *Runtime) Options() pipeline.Options {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.opts
}

// SetGrid validates and installs a new sensitivity grid shape.
func (r *Runtime) SetGrid(grid valuation.GridConfig) error {
	if err := grid.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.opts.Grid = grid
	r.mu.Unlock()
	return nil
}
