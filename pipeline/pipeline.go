package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kbukum/assetflow/logger"
	"github.com/kbukum/assetflow/process"
	"github.com/kbukum/assetflow/stream"
)

// Options configures how a pipeline resolves paths and runs its stages.
type Options struct {
	// SourceRoot is the default root for a GlobSource without one.
	SourceRoot string `yaml:"source_root" toml:"source_root" mapstructure:"source_root" json:"source_root,omitempty"`
	// DestinationRoot is the local directory written when no sinks are set.
	DestinationRoot string `yaml:"destination_root" toml:"destination_root" mapstructure:"destination_root" json:"destination_root,omitempty"`
	// ConcurrencyLimit bounds per-record parallelism in MapParallel stages.
	ConcurrencyLimit int `yaml:"concurrency_limit" toml:"concurrency_limit" mapstructure:"concurrency_limit" json:"concurrency_limit,omitempty" validate:"gte=0"`
	// CacheEnabled makes Cache available to CachedMap stages.
	CacheEnabled bool `yaml:"cache_enabled" toml:"cache_enabled" mapstructure:"cache_enabled" json:"cache_enabled,omitempty"`
}

// Pipeline is a Source, an ordered list of Stages and one or more Sinks.
// Stage order is fixed once the pipeline is built.
type Pipeline struct {
	Name    string
	Source  Source
	Stages  []Stage
	Sinks   []Sink
	Options Options

	// Cache backs CachedMap stages when Options.CacheEnabled is set.
	Cache *Cache
	// Runner executes external tools. Defaults to an unbounded runner.
	Runner *process.Runner
	Logger *logger.Logger
}

// Result summarizes one pipeline run.
type Result struct {
	// Records is the number of records written to the sinks.
	Records int
	// Outputs lists the written record paths in write order.
	Outputs []string
	// Errors holds the error that aborted the run, if any.
	Errors   []error
	Duration time.Duration
}

// Validate checks that the pipeline can run.
func (p *Pipeline) Validate() error {
	if p.Name == "" {
		return errors.New("pipeline: name is required")
	}
	if p.Source == nil {
		return fmt.Errorf("pipeline %q: source is required", p.Name)
	}
	if len(p.Sinks) == 0 && p.Options.DestinationRoot == "" {
		return fmt.Errorf("pipeline %q: at least one sink or a destination root is required", p.Name)
	}
	if gs, ok := p.Source.(*GlobSource); ok {
		if err := gs.Validate(); err != nil {
			return fmt.Errorf("pipeline %q: %w", p.Name, err)
		}
	}
	for i, s := range p.Stages {
		if s == nil {
			return fmt.Errorf("pipeline %q: stage %d is nil", p.Name, i)
		}
	}
	return nil
}

// Run pulls every source record through the stages and writes the results to
// every sink. The first stage or sink error aborts the run. Cancellation is
// checked between records; a record whose write has started is always
// written completely.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{}
	fail := func(err error) (*Result, error) {
		res.Errors = append(res.Errors, err)
		res.Duration = time.Since(start)
		return res, err
	}

	if err := p.Validate(); err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	log := p.logger()
	sinks, err := p.sinks()
	if err != nil {
		return fail(err)
	}

	src, err := p.source().Open(ctx)
	if err != nil {
		return fail(wrapStage("source", "", err))
	}

	env := Env{
		Concurrency: p.Options.ConcurrencyLimit,
		Logger:      log,
		Runner:      p.Runner,
	}
	if env.Concurrency <= 0 {
		env.Concurrency = 1
	}
	if env.Runner == nil {
		env.Runner = process.NewRunner(process.Config{}, log)
	}
	if p.Options.CacheEnabled {
		env.Cache = p.Cache
		if env.Cache == nil {
			p.Cache = NewCache()
			env.Cache = p.Cache
		}
	}

	s := src
	for _, st := range p.Stages {
		s = Isolate(st).Apply(s, env)
	}

	err = stream.ForEach(ctx, s, func(ctx context.Context, rec Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rec.Path() == "" {
			return &StageError{Stage: lastStage(p.Stages), Cause: errors.New("record has no path")}
		}
		wctx := context.WithoutCancel(ctx)
		for _, sink := range sinks {
			if err := sink.Write(wctx, rec); err != nil {
				return &SinkError{Sink: sink.Name(), Path: rec.Path(), Cause: err}
			}
		}
		res.Records++
		res.Outputs = append(res.Outputs, rec.Path())
		return nil
	})
	if err != nil {
		log.Debug("pipeline aborted", logger.MergeWithError(logger.Fields(logger.FieldRecords, res.Records), err))
		return fail(err)
	}

	res.Duration = time.Since(start)
	log.Debug("pipeline finished", logger.Fields(
		logger.FieldRecords, res.Records,
		logger.FieldDuration, res.Duration.Milliseconds(),
	))
	return res, nil
}

func (p *Pipeline) logger() *logger.Logger {
	log := p.Logger
	if log == nil {
		log = logger.Nop()
	}
	return log.WithFields(logger.Fields("pipeline", p.Name))
}

func (p *Pipeline) source() Source {
	if gs, ok := p.Source.(*GlobSource); ok && p.Options.SourceRoot != "" {
		cp := *gs
		switch {
		case cp.Root == "":
			cp.Root = p.Options.SourceRoot
		case !filepath.IsAbs(cp.Root):
			cp.Root = filepath.Join(p.Options.SourceRoot, cp.Root)
		}
		return &cp
	}
	return p.Source
}

func (p *Pipeline) sinks() ([]Sink, error) {
	if len(p.Sinks) > 0 {
		return p.Sinks, nil
	}
	dest, err := DestSink(p.Options.DestinationRoot)
	if err != nil {
		return nil, &SinkError{Sink: "dest:" + p.Options.DestinationRoot, Cause: err}
	}
	return []Sink{dest}, nil
}

func lastStage(stages []Stage) string {
	if len(stages) == 0 {
		return "source"
	}
	return stages[len(stages)-1].Name()
}
