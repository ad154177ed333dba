package errors

import (
	"context"
	stderrors "errors"
)

// Coder is implemented by errors that carry an ErrorCode.
type Coder interface {
	ErrorCode() ErrorCode
}

// Process exit statuses used by the command line.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInternal    = 3
	ExitInterrupted = 130
)

// Classify returns the code of the outermost coded error in err's chain.
// Context cancellation maps to ErrCodeInterrupted; anything else without a
// code is ErrCodeInternal.
func Classify(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var coder Coder
	if stderrors.As(err, &coder) {
		return coder.ErrorCode()
	}
	if stderrors.Is(err, context.Canceled) {
		return ErrCodeInterrupted
	}
	return ErrCodeInternal
}

// ExitCode maps an error code to a process exit status.
func ExitCode(code ErrorCode) int {
	switch code {
	case "":
		return ExitOK
	case ErrCodeInvalidConfig, ErrCodeInvalidTaskfile, ErrCodeInvalidInput,
		ErrCodeInvalidGraph, ErrCodeUnknownTask:
		return ExitUsage
	case ErrCodeInvariant, ErrCodeInternal:
		return ExitInternal
	case ErrCodeInterrupted:
		return ExitInterrupted
	default:
		return ExitFailure
	}
}

// IsRetryable reports whether err, or any error it wraps, is a retryable AppError.
func IsRetryable(err error) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}
