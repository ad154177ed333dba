// Package errors provides the structured error type shared by the build
// pipeline, its error codes, and the mapping from codes to process exit
// statuses.
package errors
