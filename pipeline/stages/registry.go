package stages

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"

	"github.com/kbukum/assetflow/pipeline"
)

// Options is the raw `with:` block of a stage.
type Options map[string]any

// Factory builds a configured stage.
type Factory func(opts Options) (pipeline.Stage, error)

// Registry maps stage names to factories.
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

// Build creates the stage registered as name.
func (r *Registry) Build(name string, opts Options) (pipeline.Stage, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown stage %q", name)
	}
	st, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("stage %q: %w", name, err)
	}
	return st, nil
}

// List returns sorted names of all registered stages.
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

// Default returns a registry with every built-in stage.
func Default() *Registry {
	r := NewRegistry()
	r.Register("rename", NewRename)
	r.Register("flatten", NewFlatten)
	r.Register("filter", NewFilter)
	r.Register("concat", NewConcat)
	r.Register("banner", NewBanner)
	r.Register("replace", NewReplace)
	r.Register("minify", NewMinify)
	r.Register("exec", NewExec)
	r.Register("lua", NewLua)
	r.Register("inject", NewInject)
	r.Register("size", NewSize)
	r.Register("notify", NewNotify)
	return r
}

// Decode copies opts into out, rejecting unknown keys.
func Decode(opts Options, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if opts == nil {
		return nil
	}
	return dec.Decode(map[string]any(opts))
}
