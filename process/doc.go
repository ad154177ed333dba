// Package process runs external tools (stylesheet compilers, image
// optimizers, linters) as subprocesses with output capture and graceful
// termination on cancellation.
package process
