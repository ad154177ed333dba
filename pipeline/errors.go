package pipeline

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/kbukum/assetflow/errors"
)

// StageError reports a failure inside a stage. Path is empty when the
// failure is not tied to a single record.
type StageError struct {
	Stage string
	Path  string
	Cause error
}

func (e *StageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("stage %q failed on %s: %v", e.Stage, e.Path, e.Cause)
	}
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error { return e.Cause }

// ErrorCode implements errors.Coder.
func (e *StageError) ErrorCode() apperrors.ErrorCode { return apperrors.ErrCodeStageFailed }

// SinkError reports a failed write. No partial artifact is left behind.
type SinkError struct {
	Sink  string
	Path  string
	Cause error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %q failed to write %s: %v", e.Sink, e.Path, e.Cause)
}

func (e *SinkError) Unwrap() error { return e.Cause }

// ErrorCode implements errors.Coder.
func (e *SinkError) ErrorCode() apperrors.ErrorCode { return apperrors.ErrCodeSinkFailed }

// wrapStage converts err into a StageError for stage unless it already is a
// pipeline error or a context error.
func wrapStage(stage, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	var ke *SinkError
	if errors.As(err, &se) || errors.As(err, &ke) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &StageError{Stage: stage, Path: path, Cause: err}
}
