package dag

import (
	"time"
)

// Result holds the outcome of one scheduler run.
type Result struct {
	RunID   string
	Targets []string
	// Tasks holds a RunResult for every task in the run.
	Tasks map[string]*RunResult
	// Order lists tasks in dispatch order. Skipped tasks are not included.
	Order    []string
	Success  bool
	Duration time.Duration
	// Cancelled is set when the run context was done before every task ran.
	Cancelled bool
}

// Failed returns the failed and skipped results in registration order.
func (r *Result) Failed(g *Graph) []*RunResult {
	var out []*RunResult
	for _, name := range g.Names() {
		rr, ok := r.Tasks[name]
		if ok && (rr.Status == StatusFailed || rr.Status == StatusSkipped) {
			out = append(out, rr)
		}
	}
	return out
}

// Records sums the records produced by every task.
func (r *Result) Records() int {
	n := 0
	for _, rr := range r.Tasks {
		n += rr.Records
	}
	return n
}

// Count returns how many tasks ended with status s.
func (r *Result) Count(s Status) int {
	n := 0
	for _, rr := range r.Tasks {
		if rr.Status == s {
			n++
		}
	}
	return n
}
