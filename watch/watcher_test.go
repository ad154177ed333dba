package watch_test

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/kbukum/assetflow/dag"
	"github.com/kbukum/assetflow/dag/dagtest"
	apperrors "github.com/kbukum/assetflow/errors"
	"github.com/kbukum/assetflow/logger"
	"github.com/kbukum/assetflow/watch"
)

const quiet = 30 * time.Millisecond

type harness struct {
	b    *dagtest.GraphBuilder
	src  *watch.ChanSource
	runs chan *dag.Result
	w    *watch.Watcher
}

func newHarness(b *dagtest.GraphBuilder, cascade bool) *harness {
	h := &harness{b: b, src: watch.NewChanSource(16), runs: make(chan *dag.Result, 16)}
	h.w = &watch.Watcher{
		Graph:     b.Build(),
		Scheduler: dag.NewScheduler(0, logger.Nop()),
		Source:    h.src,
		Root:      "/site",
		Quiet:     quiet,
		Cascade:   cascade,
		OnRun: func(res *dag.Result, err error) {
			if err == nil {
				h.runs <- res
			}
		},
	}
	return h
}

func (h *harness) start(t *testing.T, subs ...watch.Subscription) *watch.Handle {
	t.Helper()
	handle, err := h.w.Watch(context.Background(), subs)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	t.Cleanup(func() { _ = handle.Stop() })
	return handle
}

func (h *harness) nextRun(t *testing.T) *dag.Result {
	t.Helper()
	select {
	case res := <-h.runs:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a run")
		return nil
	}
}

func (h *harness) noRun(t *testing.T) {
	t.Helper()
	select {
	case res := <-h.runs:
		t.Fatalf("unexpected run of %v", res.Order)
	case <-time.After(10 * quiet):
	}
}

func sortedTasks(res *dag.Result) []string {
	var names []string
	for name := range res.Tasks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func siteGraph() *dagtest.GraphBuilder {
	return dagtest.NewGraphBuilder().
		Task("styles").
		Task("scripts").
		Task("html", "styles", "scripts")
}

func TestWatch_BurstCollapsesIntoOneRun(t *testing.T) {
	h := newHarness(siteGraph(), false)
	h.start(t, watch.Subscription{Globs: []string{"src/**/*.scss"}, Tasks: []string{"styles"}})

	for i := 0; i < 5; i++ {
		h.src.Send(watch.Event{Path: "/site/src/css/main.scss", Kind: watch.Modified})
	}

	res := h.nextRun(t)
	if got := sortedTasks(res); !slices.Equal(got, []string{"styles"}) {
		t.Errorf("expected only styles to run, got %v", got)
	}
	h.noRun(t)
	if calls := h.b.Work("styles").Calls(); calls != 1 {
		t.Errorf("expected styles to run once, got %d", calls)
	}
}

func TestWatch_OnlyAffectedTasksRun(t *testing.T) {
	h := newHarness(siteGraph(), false)
	h.start(t, watch.Subscription{Globs: []string{"**/*.html"}, Tasks: []string{"html"}})

	h.src.Send(watch.Event{Path: "pages/index.html", Kind: watch.Created})

	res := h.nextRun(t)
	if got := sortedTasks(res); !slices.Equal(got, []string{"html"}) {
		t.Errorf("expected html alone, got %v", got)
	}
	if h.b.Work("styles").Calls() != 0 || h.b.Work("scripts").Calls() != 0 {
		t.Error("dependencies of a watched task must not be rebuilt")
	}
}

func TestWatch_UnmatchedAndExcludedPathsIgnored(t *testing.T) {
	h := newHarness(siteGraph(), false)
	h.start(t, watch.Subscription{Globs: []string{"src/**/*.js", "!src/vendor/**"}, Tasks: []string{"scripts"}})

	h.src.Send(watch.Event{Path: "/site/README.md", Kind: watch.Modified})
	h.src.Send(watch.Event{Path: "/site/src/vendor/lib.js", Kind: watch.Modified})
	h.noRun(t)

	h.src.Send(watch.Event{Path: "/site/src/app.js", Kind: watch.Modified})
	res := h.nextRun(t)
	if got := sortedTasks(res); !slices.Equal(got, []string{"scripts"}) {
		t.Errorf("expected scripts, got %v", got)
	}
}

func TestWatch_Cascade(t *testing.T) {
	subs := []watch.Subscription{
		{Name: "css", Globs: []string{"**/*.scss"}, Tasks: []string{"styles"}},
		{Name: "pages", Globs: []string{"**/*.html"}, Tasks: []string{"html"}},
	}

	tests := []struct {
		name    string
		cascade bool
		want    []string
	}{
		{"off", false, []string{"styles"}},
		{"on", true, []string{"html", "styles"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(siteGraph(), tt.cascade)
			h.start(t, subs...)

			h.src.Send(watch.Event{Path: "main.scss", Kind: watch.Modified})
			res := h.nextRun(t)
			if got := sortedTasks(res); !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestWatch_CascadeSkipsUnsubscribedDependents(t *testing.T) {
	h := newHarness(siteGraph(), true)
	h.start(t, watch.Subscription{Globs: []string{"**/*.scss"}, Tasks: []string{"styles"}})

	h.src.Send(watch.Event{Path: "main.scss", Kind: watch.Modified})
	res := h.nextRun(t)
	if got := sortedTasks(res); !slices.Equal(got, []string{"styles"}) {
		t.Errorf("expected styles alone, got %v", got)
	}
}

func TestWatch_EventsDuringRunAreQueued(t *testing.T) {
	styles := dagtest.NewMockWork(1, nil).WithGate()
	b := dagtest.NewGraphBuilder().TaskWork("styles", styles)
	h := newHarness(b, false)
	h.start(t, watch.Subscription{Globs: []string{"*.scss"}, Tasks: []string{"styles"}})

	h.src.Send(watch.Event{Path: "a.scss", Kind: watch.Modified})
	select {
	case <-styles.Started():
	case <-time.After(5 * time.Second):
		t.Fatal("styles never started")
	}

	h.src.Send(watch.Event{Path: "b.scss", Kind: watch.Modified})
	h.src.Send(watch.Event{Path: "c.scss", Kind: watch.Modified})
	styles.Open()

	h.nextRun(t)
	h.nextRun(t)
	h.noRun(t)
	if calls := styles.Calls(); calls != 2 {
		t.Errorf("expected two runs, got %d", calls)
	}
}

func TestWatch_StopWaitsForInFlightRun(t *testing.T) {
	styles := dagtest.NewMockWork(1, nil).WithGate()
	b := dagtest.NewGraphBuilder().TaskWork("styles", styles)
	h := newHarness(b, false)
	handle := h.start(t, watch.Subscription{Globs: []string{"*.scss"}, Tasks: []string{"styles"}})

	h.src.Send(watch.Event{Path: "a.scss", Kind: watch.Modified})
	select {
	case <-styles.Started():
	case <-time.After(5 * time.Second):
		t.Fatal("styles never started")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- handle.Stop() }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a task was still running")
	case <-time.After(50 * time.Millisecond):
	}

	styles.Open()
	select {
	case err := <-stopped:
		if err != nil {
			t.Errorf("Stop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop never returned")
	}

	select {
	case <-handle.Done():
	default:
		t.Error("expected Done to be closed after Stop")
	}
	if _, open := <-h.src.Events(); open {
		t.Error("expected the source to be closed")
	}
}

func TestWatch_SourceCloseEndsWatch(t *testing.T) {
	h := newHarness(siteGraph(), false)
	handle := h.start(t, watch.Subscription{Globs: []string{"*"}, Tasks: []string{"styles"}})

	_ = h.src.Close()
	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not end after the source closed")
	}
	if err := handle.Err(); err != nil {
		t.Errorf("expected clean exit, got %v", err)
	}
}

func TestWatch_InvalidSubscriptions(t *testing.T) {
	tests := []struct {
		name string
		sub  watch.Subscription
		code apperrors.ErrorCode
	}{
		{"unknown task", watch.Subscription{Globs: []string{"*"}, Tasks: []string{"nope"}}, apperrors.ErrCodeUnknownTask},
		{"bad glob", watch.Subscription{Globs: []string{"src/[a"}, Tasks: []string{"styles"}}, apperrors.ErrCodeInvalidInput},
		{"no globs", watch.Subscription{Tasks: []string{"styles"}}, apperrors.ErrCodeInvalidInput},
		{"no tasks", watch.Subscription{Globs: []string{"*"}}, apperrors.ErrCodeInvalidInput},
		{"only excludes", watch.Subscription{Globs: []string{"!*.map"}, Tasks: []string{"styles"}}, apperrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(siteGraph(), false)
			_, err := h.w.Watch(context.Background(), []watch.Subscription{tt.sub})
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := apperrors.Classify(err); got != tt.code {
				t.Errorf("expected %s, got %s (%v)", tt.code, got, err)
			}
		})
	}
}

func TestWatch_InvalidGraph(t *testing.T) {
	g := dag.NewGraph().MustRegister(dag.Task{Name: "a", Deps: []string{"b"}})
	w := &watch.Watcher{Graph: g, Scheduler: dag.NewScheduler(0, nil), Source: watch.NewChanSource(1)}
	_, err := w.Watch(context.Background(), []watch.Subscription{{Globs: []string{"*"}, Tasks: []string{"a"}}})
	var unknown *dag.UnknownDependencyError
	if !stderrors.As(err, &unknown) {
		t.Fatalf("expected UnknownDependencyError, got %v", err)
	}
}

func TestFSNotifySource_ReportsChanges(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src", "css"), 0o755); err != nil {
		t.Fatal(err)
	}

	src, err := watch.NewFSNotifySource(root, watch.FSNotifyOptions{})
	if err != nil {
		t.Fatalf("NewFSNotifySource: %v", err)
	}
	defer src.Close()

	target := filepath.Join(src.Root(), "src", "css", "main.scss")
	if err := os.WriteFile(target, []byte("a{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-src.Events():
			if ev.Path != target {
				continue
			}
			if ev.Kind != watch.Created && ev.Kind != watch.Modified {
				t.Errorf("unexpected kind %s", ev.Kind)
			}
			return
		case <-deadline:
			t.Fatal("no event for the written file")
		}
	}
}

func TestFSNotifySource_CloseClosesChannels(t *testing.T) {
	src, err := watch.NewFSNotifySource(t.TempDir(), watch.FSNotifyOptions{})
	if err != nil {
		t.Fatalf("NewFSNotifySource: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, open := <-src.Events(); open {
		t.Error("expected events channel to be closed")
	}
	if err := src.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestKindString(t *testing.T) {
	tests := map[watch.Kind]string{
		watch.Created:  "created",
		watch.Modified: "modified",
		watch.Deleted:  "deleted",
		watch.Renamed:  "renamed",
		watch.Kind(0):  "unknown",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
