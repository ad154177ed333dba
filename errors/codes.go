package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Configuration errors
const (
	// ErrCodeInvalidConfig indicates the application configuration is invalid.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	// ErrCodeInvalidTaskfile indicates a taskfile could not be parsed or resolved.
	ErrCodeInvalidTaskfile ErrorCode = "INVALID_TASKFILE"
	// ErrCodeInvalidInput indicates a value supplied by the caller is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Graph construction errors
const (
	// ErrCodeInvalidGraph indicates duplicate, dangling or cyclic task definitions.
	ErrCodeInvalidGraph ErrorCode = "INVALID_GRAPH"
	// ErrCodeUnknownTask indicates a requested target is not registered.
	ErrCodeUnknownTask ErrorCode = "UNKNOWN_TASK"
)

// Execution errors
const (
	// ErrCodeStageFailed indicates a transform stage failed on a record.
	ErrCodeStageFailed ErrorCode = "STAGE_FAILED"
	// ErrCodeSinkFailed indicates a sink could not publish a record.
	ErrCodeSinkFailed ErrorCode = "SINK_FAILED"
	// ErrCodeTaskFailed indicates a task's work returned an error.
	ErrCodeTaskFailed ErrorCode = "TASK_FAILED"
	// ErrCodeTaskSkipped indicates a task was abandoned because a dependency failed.
	ErrCodeTaskSkipped ErrorCode = "TASK_SKIPPED"
	// ErrCodeExternalCommand indicates an external tool exited unsuccessfully.
	ErrCodeExternalCommand ErrorCode = "EXTERNAL_COMMAND"
	// ErrCodeStorage indicates an object storage operation failed.
	ErrCodeStorage ErrorCode = "STORAGE_ERROR"
)

// Internal errors
const (
	// ErrCodeInvariant indicates the scheduler stalled without completing.
	ErrCodeInvariant ErrorCode = "INVARIANT_VIOLATION"
	// ErrCodeInterrupted indicates the run was cancelled from outside.
	ErrCodeInterrupted ErrorCode = "INTERRUPTED"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeExternalCommand: true,
	ErrCodeStorage:         true,
	ErrCodeSinkFailed:      true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
