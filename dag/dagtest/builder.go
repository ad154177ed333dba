package dagtest

import (
	"context"
	"sync"

	"github.com/kbukum/assetflow/dag"
)

// GraphBuilder provides a fluent API for constructing test graphs.
type GraphBuilder struct {
	tasks []dag.Task
	works map[string]*MockWork
}

// NewGraphBuilder creates a new GraphBuilder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{works: make(map[string]*MockWork)}
}

// Task adds a task backed by a fresh successful MockWork.
func (b *GraphBuilder) Task(name string, deps ...string) *GraphBuilder {
	return b.TaskWork(name, NewMockWork(1, nil), deps...)
}

// TaskWork adds a task backed by w.
func (b *GraphBuilder) TaskWork(name string, w *MockWork, deps ...string) *GraphBuilder {
	b.tasks = append(b.tasks, dag.Task{Name: name, Deps: deps, Work: w})
	b.works[name] = w
	return b
}

// Work returns the mock work registered for name.
func (b *GraphBuilder) Work(name string) *MockWork {
	return b.works[name]
}

// Build registers the tasks into a new Graph. Registration errors panic.
func (b *GraphBuilder) Build() *dag.Graph {
	return dag.NewGraph().MustRegister(b.tasks...)
}

// Recorder is a dag.Subscriber that keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []dag.Event
}

var _ dag.Subscriber = (*Recorder)(nil)

func (r *Recorder) OnEvent(_ context.Context, ev dag.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []dag.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dag.Event(nil), r.events...)
}

// Kinds returns "kind:task" strings for task events and "kind" for run events.
func (r *Recorder) Kinds() []string {
	var out []string
	for _, ev := range r.Events() {
		if ev.Task != nil {
			out = append(out, string(ev.Kind)+":"+ev.Task.Task)
			continue
		}
		out = append(out, string(ev.Kind))
	}
	return out
}
