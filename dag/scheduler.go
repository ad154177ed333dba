package dag

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/assetflow/logger"
	"github.com/kbukum/assetflow/observability"
)

// Scheduler runs the tasks of a Graph in dependency order.
type Scheduler struct {
	// MaxParallel limits concurrently running tasks (0 = unlimited).
	MaxParallel int
	// Metrics records run totals when set.
	Metrics *observability.Metrics

	log  *logger.Logger
	mu   sync.RWMutex
	subs []Subscriber
}

// NewScheduler creates a scheduler running at most maxParallel tasks at once.
func NewScheduler(maxParallel int, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{MaxParallel: maxParallel, log: log.WithComponent("scheduler")}
}

// Subscribe registers a subscriber for events of all later runs.
func (s *Scheduler) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
}

// RunOption adjusts a single run.
type RunOption func(*runOptions)

type runOptions struct {
	only bool
}

// Only restricts the run to exactly the targets. Their dependencies are
// treated as already built.
func Only() RunOption {
	return func(o *runOptions) { o.only = true }
}

// Run executes targets and their transitive dependencies. With no targets
// every registered task runs. Graph and target errors are returned before any
// task starts. A returned Result with Success false and a nil error means
// tasks failed, were skipped or the run was cancelled.
//
// Cancelling ctx stops dispatch. Tasks already running are not cancelled and
// finish on a detached context; tasks not yet dispatched end Skipped.
func (s *Scheduler) Run(ctx context.Context, g *Graph, targets []string, opts ...RunOption) (*Result, error) {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		targets = g.Names()
	}

	var set map[int]bool
	var err error
	if o.only {
		set, err = g.indexesOf(targets)
	} else {
		set, err = g.closure(targets)
	}
	if err != nil {
		return nil, err
	}

	run := &schedulerRun{
		s:       s,
		g:       g,
		set:     set,
		pending: g.pendingDeps(set),
		rev:     g.reverse(),
		result: &Result{
			RunID:   uuid.NewString(),
			Targets: append([]string(nil), targets...),
			Tasks:   make(map[string]*RunResult, len(set)),
		},
	}
	ctx = logger.ContextWithRunID(ctx, run.result.RunID)
	ctx, span := observability.StartSpan(ctx, observability.SpanRun)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrRunID, run.result.RunID)
	observability.SetSpanAttribute(ctx, observability.AttrTargets, run.result.Targets)

	s.log.WithContext(ctx).Debug("run starting", logger.Fields(
		logger.FieldTargets, targets,
		"tasks", len(set),
	))
	err = run.execute(ctx)
	if err != nil {
		observability.SetSpanError(ctx, err)
	}
	return run.result, err
}

type completion struct {
	index int
	rr    RunResult
}

// schedulerRun is the state of one Run. It is only touched by the loop
// goroutine; workers report back through a channel.
type schedulerRun struct {
	s       *Scheduler
	g       *Graph
	set     map[int]bool
	pending map[int]int
	rev     [][]int
	ready   []int
	result  *Result
}

func (r *schedulerRun) execute(ctx context.Context) error {
	start := time.Now()
	for i := range r.set {
		name := r.g.tasks[i].Name
		r.result.Tasks[name] = &RunResult{Task: name, Status: StatusPending}
		if r.pending[i] == 0 {
			r.ready = insertSorted(r.ready, i)
		}
	}

	detached := context.WithoutCancel(ctx)
	done := make(chan completion)
	cancelled := ctx.Done()
	inFlight := 0

	for {
		if ctx.Err() != nil {
			r.ready = nil
		}
		for len(r.ready) > 0 && (r.s.MaxParallel <= 0 || inFlight < r.s.MaxParallel) {
			i := r.ready[0]
			r.ready = r.ready[1:]
			r.dispatch(detached, i, done)
			inFlight++
		}
		if inFlight == 0 {
			break
		}
		select {
		case c := <-done:
			inFlight--
			r.complete(ctx, c)
		case <-cancelled:
			cancelled = nil
			r.ready = nil
		}
	}

	var err error
	if ctxErr := ctx.Err(); ctxErr != nil {
		r.result.Cancelled = true
		for _, name := range r.g.namesOf(r.set) {
			rr := r.result.Tasks[name]
			if rr.Status == StatusPending {
				rr.Status = StatusSkipped
				rr.Err = &SkippedError{Task: name, Cause: ctxErr}
				r.emit(ctx, Event{Kind: TaskFinished, Task: rr})
			}
		}
	} else {
		var stalled []string
		for _, name := range r.g.namesOf(r.set) {
			if r.result.Tasks[name].Status == StatusPending {
				stalled = append(stalled, name)
			}
		}
		if len(stalled) > 0 {
			err = &SchedulerInvariantError{Stalled: stalled}
		}
	}

	r.result.Duration = time.Since(start)
	r.result.Success = err == nil && !r.result.Cancelled &&
		r.result.Count(StatusFailed) == 0 && r.result.Count(StatusSkipped) == 0

	if m := r.s.Metrics; m != nil {
		status := "succeeded"
		if !r.result.Success {
			status = "failed"
		}
		m.RecordRun(ctx, status, r.result.Duration)
	}
	r.emit(ctx, Event{Kind: RunFinished, Result: r.result})
	return err
}

func (r *schedulerRun) dispatch(ctx context.Context, i int, done chan<- completion) {
	t := r.g.tasks[i]
	rr := r.result.Tasks[t.Name]
	rr.Status = StatusRunning
	rr.StartedAt = time.Now()
	r.result.Order = append(r.result.Order, t.Name)
	taskCtx := logger.ContextWithTask(ctx, t.Name)
	r.emit(taskCtx, Event{Kind: TaskStarted, Task: rr})

	go func() {
		done <- completion{index: i, rr: t.Execute(taskCtx)}
	}()
}

func (r *schedulerRun) complete(ctx context.Context, c completion) {
	name := r.g.tasks[c.index].Name
	rr := r.result.Tasks[name]
	*rr = c.rr
	r.emit(logger.ContextWithTask(ctx, name), Event{Kind: TaskFinished, Task: rr})

	if rr.Status == StatusSucceeded {
		for _, d := range r.rev[c.index] {
			if !r.set[d] {
				continue
			}
			r.pending[d]--
			if r.pending[d] == 0 && r.result.Tasks[r.g.tasks[d].Name].Status == StatusPending {
				r.ready = insertSorted(r.ready, d)
			}
		}
		return
	}
	r.skipDependents(ctx, c.index, name)
}

// skipDependents marks every pending transitive dependent of the failed task
// Skipped, in registration order.
func (r *schedulerRun) skipDependents(ctx context.Context, failed int, upstream string) {
	seen := map[int]bool{}
	queue := []int{failed}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range r.rev[cur] {
			if r.set[d] && !seen[d] {
				seen[d] = true
				queue = append(queue, d)
			}
		}
	}
	for _, name := range r.g.namesOf(seen) {
		rr := r.result.Tasks[name]
		if rr.Status != StatusPending {
			continue
		}
		rr.Status = StatusSkipped
		rr.Err = &SkippedError{Task: name, Upstream: upstream}
		r.emit(logger.ContextWithTask(ctx, name), Event{Kind: TaskFinished, Task: rr})
	}
}

func (r *schedulerRun) emit(ctx context.Context, ev Event) {
	ev.RunID = r.result.RunID
	ev.Time = time.Now()
	if ev.Task != nil {
		cp := *ev.Task
		ev.Task = &cp
	}
	r.s.mu.RLock()
	subs := r.s.subs
	r.s.mu.RUnlock()
	for _, sub := range subs {
		sub.OnEvent(ctx, ev)
	}
}
