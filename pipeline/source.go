package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kbukum/assetflow/stream"
)

// Source produces the records a pipeline starts from. Open is called once
// per run, so sources see the filesystem as it is at the start of each run.
type Source interface {
	Open(ctx context.Context) (*stream.Stream[Record], error)
}

// GlobSource reads every file under Root matching Patterns. Patterns use
// doublestar syntax; a pattern prefixed with "!" excludes matches. Paths of
// the produced records are relative to Root and sorted.
type GlobSource struct {
	Root     string
	Patterns []string
	// Dot includes files and directories whose name starts with ".".
	Dot bool
}

// Validate checks that every pattern parses.
func (g *GlobSource) Validate() error {
	if len(g.Patterns) == 0 {
		return fmt.Errorf("glob source: no patterns")
	}
	for _, p := range g.Patterns {
		if !doublestar.ValidatePattern(strings.TrimPrefix(p, "!")) {
			return fmt.Errorf("glob source: invalid pattern %q", p)
		}
	}
	return nil
}

// Match resolves the patterns to a sorted list of relative paths.
func (g *GlobSource) Match() ([]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	root := g.Root
	if root == "" {
		root = "."
	}
	fsys := os.DirFS(root)

	var includes, excludes []string
	for _, p := range g.Patterns {
		if ex, ok := strings.CutPrefix(p, "!"); ok {
			excludes = append(excludes, ex)
		} else {
			includes = append(includes, p)
		}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, pattern := range includes {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob source: %s: %w", pattern, err)
		}
		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			if !g.Dot && hasDotSegment(m) {
				continue
			}
			if excluded(m, excludes) {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Open globs the filesystem and returns a stream that reads each file when
// it is pulled.
func (g *GlobSource) Open(ctx context.Context) (*stream.Stream[Record], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	paths, err := g.Match()
	if err != nil {
		return nil, err
	}
	root := g.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return stream.Map(stream.FromSlice(paths), func(ctx context.Context, rel string) (Record, error) {
		if err := ctx.Err(); err != nil {
			return Record{}, err
		}
		full := filepath.Join(absRoot, filepath.FromSlash(rel))
		data, err := os.ReadFile(full)
		if err != nil {
			return Record{}, &StageError{Stage: "source", Path: rel, Cause: err}
		}
		return NewRecord(rel, data).WithMeta(MetaSource, full).WithMeta(MetaRoot, absRoot), nil
	}), nil
}

func excluded(p string, excludes []string) bool {
	for _, ex := range excludes {
		if ok, _ := doublestar.Match(ex, p); ok {
			return true
		}
	}
	return false
}

func hasDotSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

type sliceSource struct {
	records []Record
}

// SliceSource returns a Source over in-memory records.
func SliceSource(records ...Record) Source {
	return &sliceSource{records: records}
}

func (s *sliceSource) Open(context.Context) (*stream.Stream[Record], error) {
	return stream.FromSlice(s.records), nil
}
