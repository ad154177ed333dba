package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kbukum/assetflow/dag"
	apperrors "github.com/kbukum/assetflow/errors"
	"github.com/kbukum/assetflow/logger"
	"github.com/kbukum/assetflow/stream"
)

// DefaultQuiet is the debounce window used when Watcher.Quiet is zero.
const DefaultQuiet = 200 * time.Millisecond

// Subscription re-runs Tasks when a path matching one of Globs changes.
// Globs starting with "!" exclude paths matched by the others.
type Subscription struct {
	Name  string
	Globs []string
	Tasks []string
}

// Watcher connects an EventSource to a Scheduler.
type Watcher struct {
	Graph     *dag.Graph
	Scheduler *dag.Scheduler
	Source    EventSource

	// Root is the directory globs are relative to. Absolute event paths are
	// made relative to it.
	Root string
	// Quiet is the debounce window. Every matching event restarts it.
	Quiet time.Duration
	// Cascade adds subscribed tasks that depend on an affected task.
	Cascade bool

	Logger *logger.Logger

	// OnRun, when set, is called after every run.
	OnRun func(res *dag.Result, err error)
}

// Handle controls a running watch.
type Handle struct {
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	err      error
}

// Stop stops dispatching, waits for the in-flight run and closes the source.
func (h *Handle) Stop() error {
	h.stopOnce.Do(h.cancel)
	<-h.done
	return h.err
}

// Done is closed once the watch has ended.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the error that ended the watch. Valid after Done is closed.
func (h *Handle) Err() error { return h.err }

type compiledSub struct {
	Subscription
	include []string
	exclude []string
}

// Watch validates subs and starts watching in the background.
func (w *Watcher) Watch(ctx context.Context, subs []Subscription) (*Handle, error) {
	if w.Graph == nil || w.Scheduler == nil || w.Source == nil {
		return nil, apperrors.InvalidInput("watcher", "graph, scheduler and source are required")
	}
	if err := w.Graph.Validate(); err != nil {
		return nil, err
	}
	compiled, err := w.compile(subs)
	if err != nil {
		return nil, err
	}

	log := w.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("watch")

	quiet := w.Quiet
	if quiet <= 0 {
		quiet = DefaultQuiet
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	l := &loop{w: w, subs: compiled, subscribed: subscribedSet(compiled), log: log}

	go l.drainErrors()
	go func() {
		defer close(h.done)
		h.err = l.run(runCtx, quiet)
		if cerr := w.Source.Close(); cerr != nil && h.err == nil {
			h.err = cerr
		}
	}()

	log.Info("Watching", logger.Fields("root", w.Root, "subscriptions", len(compiled)))
	return h, nil
}

func (w *Watcher) compile(subs []Subscription) ([]compiledSub, error) {
	out := make([]compiledSub, 0, len(subs))
	for i, sub := range subs {
		name := sub.Name
		if name == "" {
			name = fmt.Sprintf("watch-%d", i)
		}
		if len(sub.Globs) == 0 {
			return nil, apperrors.InvalidInput("watch", fmt.Sprintf("subscription %q has no globs", name))
		}
		if len(sub.Tasks) == 0 {
			return nil, apperrors.InvalidInput("watch", fmt.Sprintf("subscription %q has no tasks", name))
		}
		for _, task := range sub.Tasks {
			if _, ok := w.Graph.Task(task); !ok {
				return nil, &dag.UnknownTaskError{Task: task}
			}
		}

		c := compiledSub{Subscription: sub}
		c.Name = name
		for _, g := range sub.Globs {
			pattern, negated := strings.CutPrefix(g, "!")
			if !doublestar.ValidatePattern(pattern) {
				return nil, apperrors.InvalidInput("watch", fmt.Sprintf("subscription %q: invalid glob %q", name, g))
			}
			if negated {
				c.exclude = append(c.exclude, pattern)
			} else {
				c.include = append(c.include, pattern)
			}
		}
		if len(c.include) == 0 {
			return nil, apperrors.InvalidInput("watch", fmt.Sprintf("subscription %q has only exclude globs", name))
		}
		out = append(out, c)
	}
	return out, nil
}

func subscribedSet(subs []compiledSub) map[string]bool {
	set := map[string]bool{}
	for _, s := range subs {
		for _, t := range s.Tasks {
			set[t] = true
		}
	}
	return set
}

func (s compiledSub) matches(rel string) bool {
	hit := false
	for _, p := range s.include {
		if ok, _ := doublestar.Match(p, rel); ok {
			hit = true
			break
		}
	}
	if !hit {
		return false
	}
	for _, p := range s.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	return true
}

type loop struct {
	w          *Watcher
	subs       []compiledSub
	subscribed map[string]bool
	log        *logger.Logger
}

func (l *loop) run(ctx context.Context, quiet time.Duration) error {
	affected := stream.FlatMap(stream.FromChannel(l.w.Source.Events()), func(_ context.Context, ev Event) ([]string, error) {
		return l.affected(ev), nil
	})
	it := stream.Coalesce(affected, quiet).Iter(ctx)
	defer func() { _ = it.Close() }()

	for {
		batch, ok, err := it.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !ok {
			return nil
		}
		targets := l.targets(batch)
		if len(targets) == 0 {
			continue
		}

		l.log.Info("Change detected", logger.Fields("tasks", targets))
		res, err := l.w.Scheduler.Run(ctx, l.w.Graph, targets, dag.Only())
		if err != nil {
			l.log.Error("Run failed", logger.Fields(logger.FieldError, err.Error()))
		}
		if l.w.OnRun != nil {
			l.w.OnRun(res, err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// affected returns the tasks subscribed to ev's path.
func (l *loop) affected(ev Event) []string {
	rel := l.relative(ev.Path)
	var tasks []string
	for _, s := range l.subs {
		if s.matches(rel) {
			l.log.Debug("Matched", logger.Fields("path", rel, "kind", ev.Kind.String(), "subscription", s.Name))
			tasks = append(tasks, s.Tasks...)
		}
	}
	return tasks
}

func (l *loop) relative(p string) string {
	if filepath.IsAbs(p) && l.w.Root != "" {
		root, err := filepath.Abs(l.w.Root)
		if err == nil {
			if rel, err := filepath.Rel(root, p); err == nil {
				p = rel
			}
		}
	}
	return filepath.ToSlash(filepath.Clean(p))
}

// targets dedups batch, adds subscribed dependents when cascading and
// returns the result in registration order.
func (l *loop) targets(batch []string) []string {
	set := map[string]bool{}
	for _, t := range batch {
		set[t] = true
	}
	if l.w.Cascade {
		for _, t := range keys(set) {
			deps, err := l.w.Graph.Dependents(t)
			if err != nil {
				continue
			}
			for _, d := range deps {
				if l.subscribed[d] {
					set[d] = true
				}
			}
		}
	}

	var out []string
	for _, name := range l.w.Graph.Names() {
		if set[name] {
			out = append(out, name)
		}
	}
	return out
}

func (l *loop) drainErrors() {
	for err := range l.w.Source.Errors() {
		l.log.Warn("Watch source error", logger.Fields(logger.FieldError, err.Error()))
	}
}

// keys snapshots set so it can be extended while iterating.
func keys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}
