package taskfile

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	apperrors "github.com/kbukum/assetflow/errors"
	"github.com/kbukum/assetflow/pipeline"
)

// DefaultNames are looked up, in order, when no taskfile path is given.
var DefaultNames = []string{"Taskfile.yml", "Taskfile.yaml", "Taskfile.toml", "assetflow.tasks.yml"}

// Taskfile is a loaded taskfile with its includes resolved.
type Taskfile struct {
	// Path is the absolute path of the root file.
	Path string
	// Dir is the directory of the root file. Watch globs are relative to it.
	Dir     string
	Default []string
	Tasks   []Task
	Watch   []WatchDef
}

// Task is a task definition with its paths resolved.
type Task struct {
	TaskDef
	// File is the taskfile that declared the task.
	File string
	// Options are the file options overlaid with the task's own, with
	// roots made absolute.
	Options pipeline.Options
	// Sinks holds the task's sinks with dest paths made absolute.
	Sinks []SinkDef
}

// Names returns the task names in load order.
func (tf *Taskfile) Names() []string {
	names := make([]string, len(tf.Tasks))
	for i, t := range tf.Tasks {
		names[i] = t.Name
	}
	return names
}

// Find returns the directory's taskfile, trying DefaultNames in order.
func Find(dir string) (string, error) {
	for _, name := range DefaultNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", apperrors.InvalidTaskfile("", "no taskfile found in "+dir)
}

// Load reads the taskfile at p and every file it includes. Includes are
// loaded depth first; a file included twice is loaded once and an include
// cycle is an error.
func Load(p string) (*Taskfile, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, apperrors.InvalidTaskfile(p, err.Error()).WithCause(err)
	}
	l := &loader{
		rootDir:  filepath.Dir(abs),
		stack:    make(map[string]bool),
		resolved: make(map[string]bool),
	}
	root, err := l.load(abs)
	if err != nil {
		return nil, err
	}
	l.out.Path = abs
	l.out.Dir = l.rootDir
	l.out.Default = append([]string(nil), root.Default...)
	return &l.out, nil
}

type loader struct {
	rootDir  string
	stack    map[string]bool // current include path (cycle detection)
	resolved map[string]bool // already loaded (dedup)
	out      Taskfile
}

func (l *loader) load(abs string) (*File, error) {
	if l.stack[abs] {
		return nil, apperrors.InvalidTaskfile(abs, "circular include")
	}
	if l.resolved[abs] {
		return nil, nil
	}
	l.stack[abs] = true
	defer delete(l.stack, abs)

	f, err := readFile(abs)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(abs)

	// Resolve includes first
	for _, inc := range f.Includes {
		incPath := inc
		if !filepath.IsAbs(incPath) {
			incPath = filepath.Join(dir, incPath)
		}
		if _, err := l.load(filepath.Clean(incPath)); err != nil {
			return nil, err
		}
	}

	for _, def := range f.Tasks {
		l.out.Tasks = append(l.out.Tasks, l.resolveTask(abs, dir, f.Options, def))
	}
	for _, w := range f.Watch {
		l.out.Watch = append(l.out.Watch, l.resolveWatch(dir, w))
	}

	l.resolved[abs] = true
	return f, nil
}

func readFile(abs string) (*File, error) {
	format, err := FormatOf(abs)
	if err != nil {
		return nil, apperrors.InvalidTaskfile(abs, err.Error())
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, apperrors.InvalidTaskfile(abs, "cannot read taskfile").WithCause(err)
	}
	f, err := Parse(data, format)
	if err != nil {
		return nil, apperrors.InvalidTaskfile(abs, err.Error()).WithCause(err)
	}
	return f, nil
}

func (l *loader) resolveTask(file, dir string, base pipeline.Options, def TaskDef) Task {
	opts := base
	if def.Options != nil {
		opts = overlay(base, *def.Options)
	}
	opts.SourceRoot = absUnder(dir, opts.SourceRoot)
	if opts.DestinationRoot != "" {
		opts.DestinationRoot = absUnder(dir, opts.DestinationRoot)
	}

	sinks := make([]SinkDef, len(def.Sinks))
	for i, s := range def.Sinks {
		if s.Dest != "" {
			s.Dest = absUnder(dir, s.Dest)
		}
		sinks[i] = s
	}
	return Task{TaskDef: def, File: file, Options: opts, Sinks: sinks}
}

// resolveWatch rewrites globs declared in an included file so they are
// relative to the root taskfile directory.
func (l *loader) resolveWatch(dir string, w WatchDef) WatchDef {
	rel, err := filepath.Rel(l.rootDir, dir)
	if err != nil || rel == "." {
		return w
	}
	rel = filepath.ToSlash(rel)
	globs := make(StringList, len(w.Globs))
	for i, g := range w.Globs {
		neg := strings.HasPrefix(g, "!")
		g = path.Join(rel, strings.TrimPrefix(g, "!"))
		if neg {
			g = "!" + g
		}
		globs[i] = g
	}
	w.Globs = globs
	return w
}

// overlay returns base with the non-zero fields of over applied.
func overlay(base, over pipeline.Options) pipeline.Options {
	if over.SourceRoot != "" {
		base.SourceRoot = over.SourceRoot
	}
	if over.DestinationRoot != "" {
		base.DestinationRoot = over.DestinationRoot
	}
	if over.ConcurrencyLimit != 0 {
		base.ConcurrencyLimit = over.ConcurrencyLimit
	}
	if over.CacheEnabled {
		base.CacheEnabled = true
	}
	return base
}

func absUnder(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}
