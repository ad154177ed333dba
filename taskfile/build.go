package taskfile

import (
	"fmt"

	"github.com/kbukum/assetflow/actions"
	"github.com/kbukum/assetflow/dag"
	apperrors "github.com/kbukum/assetflow/errors"
	"github.com/kbukum/assetflow/logger"
	"github.com/kbukum/assetflow/observability"
	"github.com/kbukum/assetflow/pipeline"
	"github.com/kbukum/assetflow/pipeline/stages"
	"github.com/kbukum/assetflow/process"
	"github.com/kbukum/assetflow/storage"
	"github.com/kbukum/assetflow/watch"
)

// Builder turns a loaded Taskfile into a dag.Graph.
type Builder struct {
	Stages  *stages.Registry
	Actions *actions.Registry
	// ActionEnv is passed to every action. Root defaults to the taskfile dir.
	ActionEnv actions.Env
	// Storages are the named storages sinks can publish to.
	Storages map[string]storage.Config
	// Overrides sets ConcurrencyLimit and CacheEnabled on every pipeline
	// when non-zero. Roots always come from the taskfile.
	Overrides pipeline.Options
	Cache     *pipeline.Cache
	Runner    *process.Runner
	Logger    *logger.Logger
	// Metrics enables task metrics. Tracing is always applied.
	Metrics *observability.Metrics
}

// Project is a built taskfile, ready to schedule.
type Project struct {
	Taskfile      *Taskfile
	Graph         *dag.Graph
	Default       []string
	Subscriptions []watch.Subscription
}

// Build validates tf and registers every task. Graph errors (duplicates,
// unknown dependencies, cycles) are returned as the dag error types.
func (b *Builder) Build(tf *Taskfile) (*Project, error) {
	b.defaults()

	storageNames := make(map[string]bool, len(b.Storages))
	for name := range b.Storages {
		storageNames[name] = true
	}
	checker := Checker{Stages: b.Stages, Actions: b.Actions, Storages: storageNames}
	if err := checker.Validate(tf); err != nil {
		return nil, err
	}

	stores := make(map[string]storage.Storage)
	g := dag.NewGraph()
	for _, t := range tf.Tasks {
		work, err := b.work(tf, t, stores)
		if err != nil {
			return nil, apperrors.InvalidTaskfile(t.File, fmt.Sprintf("task %q: %v", t.Name, err)).WithCause(err)
		}
		task := dag.Task{
			Name:        t.Name,
			Description: t.Description,
			Deps:        t.Deps,
			Work:        work,
			Retry:       t.Retry,
		}
		if work != nil {
			task = dag.WithTracing(task)
			if b.Metrics != nil {
				task = dag.WithMetrics(task, b.Metrics)
			}
		}
		if err := g.Register(task); err != nil {
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	subs := make([]watch.Subscription, len(tf.Watch))
	for i, w := range tf.Watch {
		name := w.Name
		if name == "" {
			name = fmt.Sprintf("watch-%d", i)
		}
		subs[i] = watch.Subscription{Name: name, Globs: w.Globs, Tasks: w.Tasks}
	}

	return &Project{
		Taskfile:      tf,
		Graph:         g,
		Default:       tf.Default,
		Subscriptions: subs,
	}, nil
}

func (b *Builder) defaults() {
	if b.Stages == nil {
		b.Stages = stages.Default()
	}
	if b.Actions == nil {
		b.Actions = actions.Default()
	}
	if b.Logger == nil {
		b.Logger = logger.Nop()
	}
	if b.Runner == nil {
		b.Runner = process.NewRunner(process.Config{}, b.Logger)
	}
}

func (b *Builder) work(tf *Taskfile, t Task, stores map[string]storage.Storage) (dag.Work, error) {
	switch t.Kind() {
	case "action":
		env := b.ActionEnv
		if env.Root == "" {
			env.Root = tf.Dir
		}
		if env.Runner == nil {
			env.Runner = b.Runner
		}
		if env.Logger == nil {
			env.Logger = b.Logger
		}
		return b.Actions.Build(t.Action, actions.Options(t.With), env)
	case "pipeline":
		p, err := b.pipeline(t, stores)
		if err != nil {
			return nil, err
		}
		return dag.PipelineWork{Pipeline: p}, nil
	}
	return nil, nil
}

func (b *Builder) pipeline(t Task, stores map[string]storage.Storage) (*pipeline.Pipeline, error) {
	opts := t.Options
	if b.Overrides.ConcurrencyLimit > 0 {
		opts.ConcurrencyLimit = b.Overrides.ConcurrencyLimit
	}
	if b.Overrides.CacheEnabled {
		opts.CacheEnabled = true
	}

	p := &pipeline.Pipeline{
		Name: t.Name,
		Source: &pipeline.GlobSource{
			Root:     opts.SourceRoot,
			Patterns: t.Src,
			Dot:      t.Dot,
		},
		Options: opts,
		Cache:   b.Cache,
		Runner:  b.Runner,
		Logger:  b.Logger.WithComponent("pipeline"),
	}
	for _, sd := range t.Stages {
		st, err := b.Stages.Build(sd.Use, stages.Options(sd.With))
		if err != nil {
			return nil, err
		}
		p.Stages = append(p.Stages, st)
	}
	for _, sd := range t.Sinks {
		sink, err := b.sink(sd, stores)
		if err != nil {
			return nil, err
		}
		p.Sinks = append(p.Sinks, sink)
	}
	return p, p.Validate()
}

func (b *Builder) sink(sd SinkDef, stores map[string]storage.Storage) (pipeline.Sink, error) {
	if sd.Dest != "" {
		return pipeline.DestSink(sd.Dest)
	}
	st, ok := stores[sd.Storage]
	if !ok {
		var err error
		st, err = storage.New(b.Storages[sd.Storage], b.Logger.WithComponent("storage"))
		if err != nil {
			return nil, fmt.Errorf("storage %q: %w", sd.Storage, err)
		}
		stores[sd.Storage] = st
	}
	return pipeline.NewStorageSink("storage:"+sd.Storage, st), nil
}
