package dag

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/kbukum/assetflow/pipeline"
	"github.com/kbukum/assetflow/resilience"
)

// Work is what a task does when it runs. It reports how many records it
// produced.
type Work interface {
	Run(ctx context.Context) (records int, err error)
}

// ActionFunc adapts an opaque action to Work. Actions produce no records.
type ActionFunc func(ctx context.Context) error

func (f ActionFunc) Run(ctx context.Context) (int, error) { return 0, f(ctx) }

// WorkFunc adapts a function to Work.
type WorkFunc func(ctx context.Context) (int, error)

func (f WorkFunc) Run(ctx context.Context) (int, error) { return f(ctx) }

// PipelineWork runs a pipeline and reports the records it wrote.
type PipelineWork struct {
	Pipeline *pipeline.Pipeline
}

func (w PipelineWork) Run(ctx context.Context) (int, error) {
	if w.Pipeline == nil {
		return 0, fmt.Errorf("dag: pipeline work has no pipeline")
	}
	res, err := w.Pipeline.Run(ctx)
	if res == nil {
		return 0, err
	}
	return res.Records, err
}

// Task is a named unit of work with dependencies on other tasks.
type Task struct {
	Name        string
	Description string
	Deps        []string
	Work        Work
	// Retry re-runs failing work. Nil runs it once.
	Retry *resilience.RetryConfig
}

// Status is the lifecycle state of a task within one run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Done reports whether s is a final status.
func (s Status) Done() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// RunResult is the outcome of one task in one run.
type RunResult struct {
	Task      string
	Status    Status
	Err       error
	Records   int
	Duration  time.Duration
	StartedAt time.Time
}

// Execute runs the task's work and captures its outcome. Errors and panics
// become a TaskExecutionError.
func (t Task) Execute(ctx context.Context) RunResult {
	rr := RunResult{Task: t.Name, StartedAt: time.Now()}
	records, err := t.run(ctx)
	rr.Duration = time.Since(rr.StartedAt)
	rr.Records = records
	if err != nil {
		rr.Status = StatusFailed
		rr.Err = &TaskExecutionError{Task: t.Name, Cause: err}
		return rr
	}
	rr.Status = StatusSucceeded
	return rr
}

func (t Task) run(ctx context.Context) (int, error) {
	if t.Work == nil {
		return 0, nil
	}
	if t.Retry == nil {
		return safeRun(ctx, t.Work)
	}
	return resilience.Retry(ctx, *t.Retry, func() (int, error) {
		return safeRun(ctx, t.Work)
	})
}

func safeRun(ctx context.Context, w Work) (records int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return w.Run(ctx)
}
