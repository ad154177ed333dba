package actions

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/assetflow/dag"
	"github.com/kbukum/assetflow/logger"
	"github.com/kbukum/assetflow/pipeline/stages"
	"github.com/kbukum/assetflow/process"
)

// Options is the raw `with:` block of an action.
type Options map[string]any

// Env carries what actions share across a build.
type Env struct {
	// Root resolves relative paths. Defaults to the working directory.
	Root     string
	Runner   *process.Runner
	Logger   *logger.Logger
	BumpType string
}

func (e Env) logger() *logger.Logger {
	if e.Logger == nil {
		return logger.Nop()
	}
	return e.Logger
}

func (e Env) runner() *process.Runner {
	if e.Runner == nil {
		return process.NewRunner(process.Config{}, e.Logger)
	}
	return e.Runner
}

// Factory builds configured work for an action.
type Factory func(opts Options, env Env) (dag.Work, error)

// Registry maps action names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Build creates the work for the action registered as name.
func (r *Registry) Build(name string, opts Options, env Env) (dag.Work, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown action %q", name)
	}
	w, err := f(opts, env)
	if err != nil {
		return nil, fmt.Errorf("action %q: %w", name, err)
	}
	return w, nil
}

// List returns sorted names of all registered actions.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns a registry with every built-in action.
func Default() *Registry {
	r := NewRegistry()
	r.Register("bump", NewBump)
	r.Register("exec", NewExec)
	r.Register("clean", NewClean)
	return r
}

func decode(opts Options, out any) error {
	return stages.Decode(stages.Options(opts), out)
}
