package dag

import (
	"fmt"
	"strings"

	apperrors "github.com/kbukum/assetflow/errors"
)

// DuplicateTaskError is returned by Register when a name is already taken.
type DuplicateTaskError struct {
	Task string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("dag: task %q is already registered", e.Task)
}

func (e *DuplicateTaskError) ErrorCode() apperrors.ErrorCode { return apperrors.ErrCodeInvalidGraph }

// UnknownDependencyError reports a dependency that names no registered task.
type UnknownDependencyError struct {
	Task    string
	Missing string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("dag: task %q depends on unknown task %q", e.Task, e.Missing)
}

func (e *UnknownDependencyError) ErrorCode() apperrors.ErrorCode { return apperrors.ErrCodeInvalidGraph }

// CyclicDependencyError reports a dependency cycle. Cycle starts and ends
// with the same task, e.g. [a b c a].
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return "dag: dependency cycle " + strings.Join(e.Cycle, " -> ")
}

func (e *CyclicDependencyError) ErrorCode() apperrors.ErrorCode { return apperrors.ErrCodeInvalidGraph }

// UnknownTaskError reports a requested target that is not registered.
type UnknownTaskError struct {
	Task string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("dag: unknown task %q", e.Task)
}

func (e *UnknownTaskError) ErrorCode() apperrors.ErrorCode { return apperrors.ErrCodeUnknownTask }

// TaskExecutionError wraps the failure of a task's work.
type TaskExecutionError struct {
	Task  string
	Cause error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.Task, e.Cause)
}

func (e *TaskExecutionError) Unwrap() error { return e.Cause }

func (e *TaskExecutionError) ErrorCode() apperrors.ErrorCode { return apperrors.ErrCodeTaskFailed }

// SkippedError explains why a task never ran. Upstream names the failed task
// when a dependency failed; Cause is set instead when the run was cancelled.
type SkippedError struct {
	Task     string
	Upstream string
	Cause    error
}

func (e *SkippedError) Error() string {
	if e.Upstream != "" {
		return fmt.Sprintf("task %q skipped: dependency %q failed", e.Task, e.Upstream)
	}
	if e.Cause != nil {
		return fmt.Sprintf("task %q skipped: %v", e.Task, e.Cause)
	}
	return fmt.Sprintf("task %q skipped", e.Task)
}

func (e *SkippedError) Unwrap() error { return e.Cause }

func (e *SkippedError) ErrorCode() apperrors.ErrorCode { return apperrors.ErrCodeTaskSkipped }

// SchedulerInvariantError means the scheduler could make no progress while
// tasks were still pending. Validate should make this unreachable.
type SchedulerInvariantError struct {
	Stalled []string
}

func (e *SchedulerInvariantError) Error() string {
	return "dag: scheduler stalled with pending tasks: " + strings.Join(e.Stalled, ", ")
}

func (e *SchedulerInvariantError) ErrorCode() apperrors.ErrorCode { return apperrors.ErrCodeInvariant }
