package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"longbox/internal/services"
)

// Registry holds the named pipelines an installation exposes and remembers
// recent run reports for the CLI and daemon API.
type Registry struct {
	runner *Runner

	mu        sync.Mutex
	pipelines map[string]Pipeline
	history   []Report
}

// maxHistory bounds the in-memory run report list.
const maxHistory = 100

// NewRegistry constructs an empty pipeline registry.
func NewRegistry(runner *Runner) *Registry {
	return &Registry{
		runner:    runner,
		pipelines: make(map[string]Pipeline),
	}
}

// Register adds a pipeline under its name, replacing any previous
// registration.
func (reg *Registry) Register(p Pipeline) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.pipelines[p.Name] = p
}

// Names returns the registered pipeline names, sorted.
func (reg *Registry) Names() []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	names := make([]string, 0, len(reg.pipelines))
	for name := range reg.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes the named pipeline with the given parameters and records the
// report. Unknown names surface as a not-found error.
func (reg *Registry) Run(ctx context.Context, name string, params Params) (Report, error) {
	reg.mu.Lock()
	p, ok := reg.pipelines[name]
	reg.mu.Unlock()
	if !ok {
		return Report{}, fmt.Errorf("%w: pipeline %q", services.ErrNotFound, name)
	}

	report, err := reg.runner.Execute(ctx, p, params)

	reg.mu.Lock()
	reg.history = append(reg.history, report)
	if len(reg.history) > maxHistory {
		reg.history = reg.history[len(reg.history)-maxHistory:]
	}
	reg.mu.Unlock()

	return report, err
}

// History returns recorded run reports, newest last.
func (reg *Registry) History() []Report {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	cp := make([]Report, len(reg.history))
	copy(cp, reg.history)
	return cp
}
