package dag

import (
	"context"
	"time"

	"github.com/kbukum/assetflow/logger"
	"github.com/kbukum/assetflow/observability"
)

// WithTracing wraps a task's Work with OpenTelemetry span creation.
// Each execution creates a span named "task.{name}".
func WithTracing(t Task) Task {
	t.Work = &tracingWork{inner: t.Work, name: t.Name}
	return t
}

type tracingWork struct {
	inner Work
	name  string
}

func (w *tracingWork) Run(ctx context.Context) (int, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanTask+"."+w.name)
	defer span.End()

	observability.SetSpanAttribute(ctx, observability.AttrTask, w.name)
	observability.SetSpanAttribute(ctx, observability.AttrRunID, logger.RunIDFromContext(ctx))

	records, err := runWork(ctx, w.inner)
	observability.SetSpanAttribute(ctx, observability.AttrRecords, records)
	if err != nil {
		observability.SetSpanError(ctx, err)
	}
	return records, err
}

// WithMetrics wraps a task's Work with metric recording.
// Records task count, duration, records and errors.
func WithMetrics(t Task, metrics *observability.Metrics) Task {
	t.Work = &metricsWork{inner: t.Work, name: t.Name, metrics: metrics}
	return t
}

type metricsWork struct {
	inner   Work
	name    string
	metrics *observability.Metrics
}

func (w *metricsWork) Run(ctx context.Context) (int, error) {
	w.metrics.RecordTaskStart(ctx)
	start := time.Now()
	records, err := runWork(ctx, w.inner)
	duration := time.Since(start)

	status := string(StatusSucceeded)
	if err != nil {
		status = string(StatusFailed)
		w.metrics.RecordError(ctx, "execute", w.name)
	}
	w.metrics.RecordTaskEnd(ctx, w.name, status, records, duration)
	return records, err
}

// WithLogging wraps a task's Work with execution logging.
// Logs: task name, duration, records, and success/error status.
func WithLogging(t Task, log *logger.Logger) Task {
	t.Work = &loggingWork{inner: t.Work, name: t.Name, log: log}
	return t
}

type loggingWork struct {
	inner Work
	name  string
	log   *logger.Logger
}

func (w *loggingWork) Run(ctx context.Context) (int, error) {
	start := time.Now()
	records, err := runWork(ctx, w.inner)
	fields := logger.DurationFields(w.name, time.Since(start))
	fields[logger.FieldRecords] = records

	log := w.log.WithContext(ctx)
	if err != nil {
		log.Error("task work failed", logger.MergeWithError(fields, err))
	} else {
		log.Debug("task work completed", fields)
	}
	return records, err
}

// Instrument applies tracing, and metrics when non-nil, to every task.
func Instrument(tasks []Task, metrics *observability.Metrics) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		t = WithTracing(t)
		if metrics != nil {
			t = WithMetrics(t, metrics)
		}
		out[i] = t
	}
	return out
}

func runWork(ctx context.Context, w Work) (int, error) {
	if w == nil {
		return 0, nil
	}
	return w.Run(ctx)
}
