package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/kbukum/assetflow/actions"
	"github.com/kbukum/assetflow/config"
	"github.com/kbukum/assetflow/dag"
	apperrors "github.com/kbukum/assetflow/errors"
	"github.com/kbukum/assetflow/logger"
	"github.com/kbukum/assetflow/observability"
	"github.com/kbukum/assetflow/pipeline"
	"github.com/kbukum/assetflow/process"
	"github.com/kbukum/assetflow/server"
	_ "github.com/kbukum/assetflow/storage/s3"
	"github.com/kbukum/assetflow/taskfile"
	"github.com/kbukum/assetflow/version"
	"github.com/kbukum/assetflow/watch"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	watch       bool
	serve       bool
	list        bool
	dryRun      bool
	showVersion bool
	configFile  string
	targets     []string
}

func newFlagSet(stderr io.Writer) (*pflag.FlagSet, *options) {
	var o options
	fs := pflag.NewFlagSet("assetflow", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: assetflow [flags] [targets...]")
		fs.PrintDefaults()
	}

	fs.BoolVarP(&o.watch, "watch", "w", false, "rebuild affected tasks when watched files change")
	fs.BoolVar(&o.serve, "serve", false, "serve the build output with live reload")
	fs.BoolVarP(&o.list, "list", "l", false, "list tasks and exit")
	fs.BoolVarP(&o.dryRun, "dry-run", "n", false, "print the execution levels without running")
	fs.BoolVar(&o.showVersion, "version", false, "print version and exit")
	fs.StringVarP(&o.configFile, "config", "c", "", "config file (default: ./assetflow.yml when present)")

	// Bound to config keys through config.FlagKeys.
	fs.IntP("concurrency", "j", 0, "maximum tasks running at once (0 = unlimited)")
	fs.StringP("taskfile", "t", "", "taskfile path (default: search the working directory)")
	fs.String("bump-type", "", "version bump for the bump action: major, minor or patch")
	fs.Duration("debounce", 0, "quiet window before a watch rebuild")
	fs.String("cache-dir", "", "persistent stage cache directory")
	fs.Bool("cascade", false, "in watch mode, also rebuild subscribed dependents")
	fs.Int("port", 0, "dev server port")
	fs.String("log-level", "", "log level: debug, info, warn or error")
	fs.String("log-format", "", "log format: console or json")
	return fs, &o
}

// app carries what one invocation needs; stop hooks run in reverse on exit.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	stdout  io.Writer
	stderr  io.Writer
	project *taskfile.Project
	sched   *dag.Scheduler
	onStop  []func(context.Context) error
}

// run executes one invocation and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, opts := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return apperrors.ExitOK
		}
		fmt.Fprintf(stderr, "assetflow: %v\n", err)
		fs.Usage()
		return apperrors.ExitUsage
	}
	opts.targets = fs.Args()

	if opts.showVersion {
		fmt.Fprintln(stdout, version.Banner("assetflow"))
		return apperrors.ExitOK
	}

	cfg, err := config.Load(config.WithConfigFile(opts.configFile), config.WithFlags(fs))
	if err != nil {
		return fail(stderr, err)
	}

	a := &app{cfg: cfg, stdout: stdout, stderr: stderr}
	a.log = a.newLogger()
	logger.SetGlobalLogger(a.log)
	if err := logger.RegisterComponents(a.log, cfg.Logging.Components, logger.Components...); err != nil {
		return fail(stderr, apperrors.InvalidConfig(err.Error()).WithCause(err))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			a.log.Info("Received signal, stopping", logger.Fields("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	code := a.execute(ctx, opts)
	if err := a.stop(); err != nil {
		a.log.Error("Shutdown completed with errors", logger.Fields(logger.FieldError, err.Error()))
	}
	return code
}

func (a *app) execute(ctx context.Context, opts *options) int {
	if err := a.setup(ctx, opts); err != nil {
		return fail(a.stderr, err)
	}
	targets := a.targets(opts)

	switch {
	case opts.list:
		writeList(a.stdout, a.project.Graph)
		return apperrors.ExitOK
	case opts.dryRun:
		if err := writeLevels(a.stdout, a.project.Graph, targets); err != nil {
			return fail(a.stderr, err)
		}
		return apperrors.ExitOK
	}

	if opts.serve {
		if err := a.startServer(ctx); err != nil {
			return fail(a.stderr, err)
		}
	}

	res, err := a.sched.Run(ctx, a.project.Graph, targets)
	if err != nil {
		return fail(a.stderr, err)
	}
	writeSummary(a.stderr, a.project.Graph, res)

	if !opts.watch && !opts.serve {
		return resultCode(res)
	}
	if opts.watch {
		if err := a.watch(ctx); err != nil {
			return fail(a.stderr, err)
		}
		return apperrors.ExitOK
	}
	<-ctx.Done()
	return apperrors.ExitOK
}

// setup loads the taskfile and wires the scheduler, telemetry and cache.
func (a *app) setup(ctx context.Context, opts *options) error {
	shutdown, err := observability.Setup(ctx, a.cfg.Telemetry, a.cfg.Name, version.GetShortVersion(), a.cfg.Environment)
	if err != nil {
		return apperrors.InvalidConfig("telemetry: " + err.Error()).WithCause(err)
	}
	a.onStop = append(a.onStop, shutdown)

	var metrics *observability.Metrics
	if a.cfg.Telemetry.Enabled {
		if metrics, err = observability.NewMetrics(observability.Meter("assetflow")); err != nil {
			return apperrors.Internal(err)
		}
	}

	path := a.cfg.Build.Taskfile
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return apperrors.Internal(err)
		}
		if path, err = taskfile.Find(wd); err != nil {
			return err
		}
	}
	tf, err := taskfile.Load(path)
	if err != nil {
		return err
	}

	cache := pipeline.NewCache()
	if a.cfg.Build.CacheEnabled && !opts.list && !opts.dryRun {
		if cache, err = pipeline.OpenCache(under(tf.Dir, a.cfg.Build.CacheDir)); err != nil {
			return apperrors.InvalidConfig(err.Error()).WithCause(err)
		}
	}

	runner := process.NewRunner(process.Config{MaxConcurrent: a.cfg.Build.Concurrency}, logger.Get("process"))
	b := &taskfile.Builder{
		ActionEnv: actions.Env{BumpType: a.cfg.Build.BumpType},
		Storages:  a.cfg.Storage,
		Overrides: pipeline.Options{ConcurrencyLimit: a.cfg.Build.RecordConcurrency},
		Cache:     cache,
		Runner:    runner,
		Logger:    a.log,
		Metrics:   metrics,
	}
	if a.project, err = b.Build(tf); err != nil {
		return err
	}

	a.sched = dag.NewScheduler(a.cfg.Build.Concurrency, logger.Get("scheduler"))
	a.sched.Subscribe(dag.NewLogSubscriber(a.log))
	return nil
}

// targets picks positional targets, then configured ones, then the taskfile default.
func (a *app) targets(opts *options) []string {
	switch {
	case len(opts.targets) > 0:
		return opts.targets
	case len(a.cfg.Build.Targets) > 0:
		return a.cfg.Build.Targets
	default:
		return a.project.Default
	}
}

func (a *app) startServer(ctx context.Context) error {
	sc := a.cfg.Serve
	sc.Root = under(a.project.Taskfile.Dir, sc.Root)
	srv := server.New(sc, a.log)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	a.onStop = append(a.onStop, srv.Stop)
	a.sched.Subscribe(server.NewReloadSubscriber(srv.Hub(), a.log))
	return nil
}

// watch blocks until ctx is done or the event source fails.
func (a *app) watch(ctx context.Context) error {
	subs := a.project.Subscriptions
	if len(subs) == 0 {
		a.log.Warn("Taskfile declares no watch entries; nothing to watch")
		<-ctx.Done()
		return nil
	}

	root := a.project.Taskfile.Dir
	if a.cfg.Watch.Root != "" {
		root = under(root, a.cfg.Watch.Root)
	}
	ignore := append([]string{}, watch.DefaultIgnore...)
	ignore = append(ignore, filepath.Base(a.cfg.Build.CacheDir))
	src, err := watch.NewFSNotifySource(root, watch.FSNotifyOptions{Ignore: ignore})
	if err != nil {
		return apperrors.InvalidConfig("watch: " + err.Error()).WithCause(err)
	}

	w := &watch.Watcher{
		Graph:     a.project.Graph,
		Scheduler: a.sched,
		Source:    src,
		Root:      src.Root(),
		Quiet:     a.cfg.Build.Debounce,
		Cascade:   a.cfg.Watch.Cascade,
		Logger:    logger.Get("watch"),
		OnRun: func(res *dag.Result, err error) {
			if err != nil {
				fmt.Fprintf(a.stderr, "assetflow: %v\n", err)
				return
			}
			writeSummary(a.stderr, a.project.Graph, res)
		},
	}
	h, err := w.Watch(ctx, subs)
	if err != nil {
		src.Close()
		return err
	}
	select {
	case <-ctx.Done():
	case <-h.Done():
	}
	return h.Stop()
}

func (a *app) newLogger() *logger.Logger {
	w := a.stderr
	if strings.EqualFold(a.cfg.Logging.Output, "stdout") {
		w = a.stdout
	}
	return logger.NewWithWriter(&a.cfg.Logging, a.cfg.Name, w)
}

// stop runs the stop hooks in reverse registration order.
func (a *app) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var firstErr error
	for i := len(a.onStop) - 1; i >= 0; i-- {
		if err := a.onStop[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// under resolves p against dir unless it is already absolute.
func under(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func resultCode(res *dag.Result) int {
	switch {
	case res.Success:
		return apperrors.ExitOK
	case res.Cancelled:
		return apperrors.ExitInterrupted
	default:
		return apperrors.ExitFailure
	}
}

func fail(w io.Writer, err error) int {
	code := apperrors.Classify(err)
	fmt.Fprintf(w, "assetflow: %v\n", err)
	return apperrors.ExitCode(code)
}
