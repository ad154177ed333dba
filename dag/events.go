package dag

import (
	"context"
	"time"

	"github.com/kbukum/assetflow/logger"
)

// EventKind names a scheduler event.
type EventKind string

const (
	TaskStarted  EventKind = "task_started"
	TaskFinished EventKind = "task_finished"
	RunFinished  EventKind = "run_finished"
)

// Event is delivered to subscribers as a run progresses. Task events carry
// the task's RunResult. RunFinished carries the Result.
type Event struct {
	Kind   EventKind
	RunID  string
	Time   time.Time
	Task   *RunResult
	Result *Result
}

// Subscriber receives scheduler events. OnEvent is called from the scheduler
// loop and must not block for long.
type Subscriber interface {
	OnEvent(ctx context.Context, ev Event)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, ev Event)

func (f SubscriberFunc) OnEvent(ctx context.Context, ev Event) { f(ctx, ev) }

// LogSubscriber logs task and run completion.
type LogSubscriber struct {
	Log *logger.Logger
}

// NewLogSubscriber creates a LogSubscriber tagged with the scheduler component.
func NewLogSubscriber(log *logger.Logger) *LogSubscriber {
	if log == nil {
		log = logger.Nop()
	}
	return &LogSubscriber{Log: log.WithComponent("scheduler")}
}

func (s *LogSubscriber) OnEvent(ctx context.Context, ev Event) {
	log := s.Log.WithContext(ctx)
	switch ev.Kind {
	case TaskStarted:
		log.Info("Starting", logger.Fields(logger.FieldTask, ev.Task.Task))
	case TaskFinished:
		rr := ev.Task
		fields := logger.Fields(
			logger.FieldTask, rr.Task,
			logger.FieldStatus, string(rr.Status),
			logger.FieldRecords, rr.Records,
			logger.FieldDuration, rr.Duration.Milliseconds(),
		)
		switch rr.Status {
		case StatusFailed:
			log.Error("Failed", logger.MergeWithError(fields, rr.Err))
		case StatusSkipped:
			log.Warn("Skipped", logger.MergeWithError(fields, rr.Err))
		default:
			log.Info("Finished", fields)
		}
	case RunFinished:
		res := ev.Result
		fields := logger.Fields(
			logger.FieldTargets, res.Targets,
			"succeeded", res.Count(StatusSucceeded),
			"failed", res.Count(StatusFailed),
			"skipped", res.Count(StatusSkipped),
			logger.FieldDuration, res.Duration.Milliseconds(),
		)
		if res.Success {
			log.Info("Run finished", fields)
		} else {
			log.Warn("Run finished with errors", fields)
		}
	}
}
