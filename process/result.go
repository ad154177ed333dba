package process

import "time"

// Result holds the output and status of a completed subprocess.
type Result struct {
	// Stdout is the captured standard output.
	Stdout []byte
	// Stderr is the captured standard error.
	Stderr []byte
	// ExitCode is the process exit code. -1 if the process was killed or never started.
	ExitCode int
	// Duration is how long the process ran.
	Duration time.Duration
}

// StderrTail returns at most n trailing bytes of stderr, for error reports.
func (r *Result) StderrTail(n int) string {
	if r == nil {
		return ""
	}
	if len(r.Stderr) <= n {
		return string(r.Stderr)
	}
	return string(r.Stderr[len(r.Stderr)-n:])
}
