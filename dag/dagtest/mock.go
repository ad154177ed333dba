package dagtest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kbukum/assetflow/dag"
)

// MockWork is a configurable dag.Work for tests.
// It records calls and returns a preset record count or error.
type MockWork struct {
	records int
	err     error
	fn      func(ctx context.Context) (int, error)

	gate    chan struct{}
	started chan struct{}
	gauge   *Gauge

	mu    sync.Mutex
	calls int
}

var _ dag.Work = (*MockWork)(nil)

// NewMockWork creates mock work that returns records and err.
func NewMockWork(records int, err error) *MockWork {
	return &MockWork{records: records, err: err, started: make(chan struct{}, 64)}
}

// NewMockWorkFunc creates mock work backed by a custom function.
func NewMockWorkFunc(fn func(ctx context.Context) (int, error)) *MockWork {
	return &MockWork{fn: fn, started: make(chan struct{}, 64)}
}

// WithGate makes Run block until Open is called.
func (w *MockWork) WithGate() *MockWork {
	w.gate = make(chan struct{})
	return w
}

// WithGauge reports concurrent executions to g.
func (w *MockWork) WithGauge(g *Gauge) *MockWork {
	w.gauge = g
	return w
}

// Open releases every blocked and future Run.
func (w *MockWork) Open() {
	if w.gate != nil {
		close(w.gate)
	}
}

// Started is signalled each time Run begins.
func (w *MockWork) Started() <-chan struct{} { return w.started }

func (w *MockWork) Run(ctx context.Context) (int, error) {
	w.mu.Lock()
	w.calls++
	w.mu.Unlock()

	if w.gauge != nil {
		w.gauge.inc()
		defer w.gauge.dec()
	}
	select {
	case w.started <- struct{}{}:
	default:
	}
	if w.gate != nil {
		<-w.gate
	}
	if w.fn != nil {
		return w.fn(ctx)
	}
	return w.records, w.err
}

// Calls returns how many times Run was invoked.
func (w *MockWork) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

// Reset clears the call counter.
func (w *MockWork) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = 0
}

// Gauge tracks current and peak concurrency across mock work.
type Gauge struct {
	cur  atomic.Int32
	peak atomic.Int32
}

func (g *Gauge) inc() {
	n := g.cur.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (g *Gauge) dec() { g.cur.Add(-1) }

// Peak returns the highest observed concurrency.
func (g *Gauge) Peak() int { return int(g.peak.Load()) }
