package taskfile_test

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/kbukum/assetflow/dag"
	apperrors "github.com/kbukum/assetflow/errors"
	"github.com/kbukum/assetflow/logger"
	"github.com/kbukum/assetflow/storage"
	"github.com/kbukum/assetflow/taskfile"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return string(data)
}

func load(t *testing.T, dir, content string) *taskfile.Taskfile {
	t.Helper()
	tf, err := taskfile.Load(writeFile(t, dir, "Taskfile.yml", content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return tf
}

func run(t *testing.T, p *taskfile.Project, targets ...string) *dag.Result {
	t.Helper()
	res, err := dag.NewScheduler(0, logger.Nop()).Run(context.Background(), p.Graph, targets)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func TestBuildAndRunProject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/css/a.css", "a{}")
	writeFile(t, dir, "src/css/b.css", "b{}")
	writeFile(t, dir, "src/index.html", "<html></html>")
	writeFile(t, dir, "package.json", `{"name": "site", "version": "1.2.3"}`)

	tf := load(t, dir, `
options:
  source_root: src
  destination_root: public
default: [site]
tasks:
  - name: styles
    src: "css/*.css"
    stages:
      - use: concat
        with: {file: css/app.css, separator: ""}
  - name: html
    src: "*.html"
    sinks:
      - dest: public/pages
  - name: site
    deps: [styles, html]
  - name: release
    action: bump
    with:
      files: [package.json]
      type: minor
watch:
  - globs: "src/css/**"
    tasks: styles
  - name: pages
    globs: "src/*.html"
    tasks: [html]
`)

	p, err := (&taskfile.Builder{}).Build(tf)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := p.Graph.Names(); !slices.Equal(got, []string{"styles", "html", "site", "release"}) {
		t.Errorf("unexpected graph %v", got)
	}
	if !slices.Equal(p.Default, []string{"site"}) {
		t.Errorf("unexpected default %v", p.Default)
	}
	if len(p.Subscriptions) != 2 || p.Subscriptions[0].Name != "watch-0" || p.Subscriptions[1].Name != "pages" {
		t.Errorf("unexpected subscriptions %+v", p.Subscriptions)
	}

	res := run(t, p, p.Default...)
	if !res.Success {
		t.Fatalf("expected success, got %+v", res.Tasks)
	}
	if _, ran := res.Tasks["release"]; ran {
		t.Error("release is not reachable from site and must not run")
	}
	if got := readFile(t, filepath.Join(dir, "public", "css", "app.css")); got != "a{}b{}" {
		t.Errorf("unexpected concat output %q", got)
	}
	if got := readFile(t, filepath.Join(dir, "public", "pages", "index.html")); got != "<html></html>" {
		t.Errorf("unexpected html output %q", got)
	}
	if res.Tasks["styles"].Records != 1 || res.Tasks["html"].Records != 1 {
		t.Errorf("unexpected record counts styles=%d html=%d", res.Tasks["styles"].Records, res.Tasks["html"].Records)
	}

	res = run(t, p, "release")
	if !res.Success {
		t.Fatalf("release failed: %v", res.Tasks["release"].Err)
	}
	if got := readFile(t, filepath.Join(dir, "package.json")); !strings.Contains(got, `"version": "1.3.0"`) {
		t.Errorf("expected bumped version, got %s", got)
	}
}

func TestBuildStorageSink(t *testing.T) {
	dir := t.TempDir()
	bucket := t.TempDir()
	writeFile(t, dir, "img/logo.svg", "<svg/>")

	tf := load(t, dir, `
tasks:
  - name: images
    src: "img/*.svg"
    sinks:
      - storage: cdn
      - dest: public
`)
	b := &taskfile.Builder{Storages: map[string]storage.Config{
		"cdn": {Provider: storage.ProviderLocal, BasePath: bucket},
	}}
	p, err := b.Build(tf)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if res := run(t, p); !res.Success {
		t.Fatalf("expected success, got %v", res.Tasks["images"].Err)
	}
	for _, p := range []string{filepath.Join(bucket, "img", "logo.svg"), filepath.Join(dir, "public", "img", "logo.svg")} {
		if got := readFile(t, p); got != "<svg/>" {
			t.Errorf("unexpected content in %s: %q", p, got)
		}
	}
}

func TestBuildOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "a")

	tf := load(t, dir, `
options:
  destination_root: out
tasks:
  - name: copy
    src: "*.txt"
`)
	b := &taskfile.Builder{}
	b.Overrides.DestinationRoot = filepath.Join(dir, "elsewhere")
	b.Overrides.ConcurrencyLimit = 2
	p, err := b.Build(tf)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res := run(t, p); !res.Success {
		t.Fatalf("copy failed: %v", res.Tasks["copy"].Err)
	}
	if got := readFile(t, filepath.Join(dir, "out", "a.txt")); got != "a" {
		t.Errorf("expected roots to come from the taskfile, got %q", got)
	}
}

func TestBuildValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown stage", "tasks:\n  - name: a\n    src: x\n    stages: [{use: nope}]\n    sinks: [{dest: out}]\n", `unknown stage "nope"`},
		{"unknown action", "tasks:\n  - name: a\n    action: deploy\n", `unknown action "deploy"`},
		{"action with src", "tasks:\n  - name: a\n    action: clean\n    src: x\n", "cannot be combined with src"},
		{"missing sink", "tasks:\n  - name: a\n    src: x\n", "destination_root is required"},
		{"both sink kinds", "tasks:\n  - name: a\n    src: x\n    sinks: [{dest: out, storage: cdn}]\n", "exactly one of dest or storage"},
		{"unknown storage", "tasks:\n  - name: a\n    src: x\n    sinks: [{storage: cdn}]\n", `unknown storage "cdn"`},
		{"bad glob", "tasks:\n  - name: a\n    src: \"[x\"\n    sinks: [{dest: out}]\n", "src"},
		{"with on pipeline", "tasks:\n  - name: a\n    src: x\n    with: {a: 1}\n    sinks: [{dest: out}]\n", "only action tasks take with"},
		{"missing name", "tasks:\n  - deps: [b]\n", "name"},
		{"unknown watch task", "tasks:\n  - name: a\nwatch:\n  - globs: x\n    tasks: b\n", `unknown task "b"`},
		{"unknown default", "default: [b]\ntasks:\n  - name: a\n", `unknown task "b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tf := load(t, t.TempDir(), tt.content)
			_, err := (&taskfile.Builder{}).Build(tf)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if got := apperrors.Classify(err); got != apperrors.ErrCodeInvalidTaskfile {
				t.Errorf("expected INVALID_TASKFILE, got %s (%v)", got, err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in %v", tt.want, err)
			}
		})
	}
}

func TestBuildGraphErrors(t *testing.T) {
	t.Run("duplicate", func(t *testing.T) {
		tf := load(t, t.TempDir(), "tasks:\n  - name: a\n  - name: a\n")
		_, err := (&taskfile.Builder{}).Build(tf)
		var dup *dag.DuplicateTaskError
		if !stderrors.As(err, &dup) {
			t.Fatalf("expected DuplicateTaskError, got %v", err)
		}
	})
	t.Run("cycle", func(t *testing.T) {
		tf := load(t, t.TempDir(), "tasks:\n  - name: a\n    deps: [b]\n  - name: b\n    deps: [a]\n")
		_, err := (&taskfile.Builder{}).Build(tf)
		var cyc *dag.CyclicDependencyError
		if !stderrors.As(err, &cyc) {
			t.Fatalf("expected CyclicDependencyError, got %v", err)
		}
		if apperrors.Classify(err) != apperrors.ErrCodeInvalidGraph {
			t.Errorf("expected INVALID_GRAPH, got %s", apperrors.Classify(err))
		}
	})
	t.Run("unknown dependency", func(t *testing.T) {
		tf := load(t, t.TempDir(), "tasks:\n  - name: a\n    deps: [ghost]\n")
		_, err := (&taskfile.Builder{}).Build(tf)
		var unknown *dag.UnknownDependencyError
		if !stderrors.As(err, &unknown) {
			t.Fatalf("expected UnknownDependencyError, got %v", err)
		}
	})
}

func TestBuildBadStageOptions(t *testing.T) {
	tf := load(t, t.TempDir(), "tasks:\n  - name: a\n    src: x\n    stages: [{use: concat}]\n    sinks: [{dest: out}]\n")
	_, err := (&taskfile.Builder{}).Build(tf)
	if err == nil || !strings.Contains(err.Error(), "file is required") {
		t.Fatalf("expected stage option error, got %v", err)
	}
}

func TestBuildExampleSite(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Taskfile.yml", "tasks/lint.yml"} {
		data, err := os.ReadFile(filepath.Join("..", "examples", "site", filepath.FromSlash(name)))
		if err != nil {
			t.Fatal(err)
		}
		writeFile(t, dir, name, string(data))
	}

	tf := load(t, dir, readFile(t, filepath.Join(dir, "Taskfile.yml")))
	p, err := (&taskfile.Builder{Storages: map[string]storage.Config{
		"scratch": {Provider: storage.ProviderLocal, BasePath: t.TempDir()},
	}}).Build(tf)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got := p.Graph.Names()[0]; got != "lint" {
		t.Errorf("included tasks load first, got %q", got)
	}
	closure, err := p.Graph.Closure(p.Default)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"styles", "copystyles", "critical", "html", "images", "fonts", "extras"} {
		if !slices.Contains(closure, name) {
			t.Errorf("build closure missing %q: %v", name, closure)
		}
	}
	levels, err := p.Graph.LevelsOf(closure)
	if err != nil {
		t.Fatal(err)
	}
	if last := levels[len(levels)-1]; !slices.Equal(last, []string{"build"}) {
		t.Errorf("expected build last, got %v", levels)
	}

	if len(p.Subscriptions) != 3 {
		t.Fatalf("expected 3 subscriptions, got %+v", p.Subscriptions)
	}
	if got := p.Subscriptions[0].Globs; !slices.Equal(got, []string{"app/scripts/**/*.js"}) {
		t.Errorf("included watch globs should be rooted at the site, got %v", got)
	}
}
