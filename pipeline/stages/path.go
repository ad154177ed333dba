package stages

import (
	"context"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kbukum/assetflow/pipeline"
)

// RenameOptions rewrites parts of the record path. Empty fields keep the
// current value; Prefix and Suffix wrap the base name.
type RenameOptions struct {
	Dirname  string `mapstructure:"dirname"`
	Basename string `mapstructure:"basename"`
	Extname  string `mapstructure:"extname"`
	Prefix   string `mapstructure:"prefix"`
	Suffix   string `mapstructure:"suffix"`
}

// NewRename builds the rename stage.
func NewRename(opts Options) (pipeline.Stage, error) {
	var o RenameOptions
	if err := Decode(opts, &o); err != nil {
		return nil, err
	}
	return Rename(o), nil
}

// Rename returns a stage that rewrites record paths.
func Rename(o RenameOptions) pipeline.Stage {
	return pipeline.Map("rename", func(_ context.Context, rec pipeline.Record) (pipeline.Record, error) {
		return rec.WithPath(o.apply(rec.Path())), nil
	})
}

func (o RenameOptions) apply(p string) string {
	dir, file := path.Split(p)
	ext := path.Ext(file)
	base := strings.TrimSuffix(file, ext)
	if o.Dirname != "" {
		dir = o.Dirname
	}
	if o.Basename != "" {
		base = o.Basename
	}
	if o.Extname != "" {
		ext = o.Extname
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
	}
	return path.Join(dir, o.Prefix+base+o.Suffix+ext)
}

// NewFlatten builds the flatten stage, which drops every directory from the
// record path.
func NewFlatten(opts Options) (pipeline.Stage, error) {
	var o struct{}
	if err := Decode(opts, &o); err != nil {
		return nil, err
	}
	return pipeline.Map("flatten", func(_ context.Context, rec pipeline.Record) (pipeline.Record, error) {
		return rec.WithPath(path.Base(rec.Path())), nil
	}), nil
}

// FilterOptions keeps records matching any Include glob (all records when
// empty) and no Exclude glob.
type FilterOptions struct {
	Include []string `mapstructure:"include"`
	Exclude []string `mapstructure:"exclude"`
}

// NewFilter builds the filter stage.
func NewFilter(opts Options) (pipeline.Stage, error) {
	var o FilterOptions
	if err := Decode(opts, &o); err != nil {
		return nil, err
	}
	return Filter(o)
}

// Filter returns a stage that drops records by glob.
func Filter(o FilterOptions) (pipeline.Stage, error) {
	for _, p := range append(append([]string{}, o.Include...), o.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, &invalidPatternError{pattern: p}
		}
	}
	return pipeline.Filter("filter", func(rec pipeline.Record) bool {
		return matchAny(o.Include, rec.Path(), true) && !matchAny(o.Exclude, rec.Path(), false)
	}), nil
}

func matchAny(patterns []string, p string, whenEmpty bool) bool {
	if len(patterns) == 0 {
		return whenEmpty
	}
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

type invalidPatternError struct{ pattern string }

func (e *invalidPatternError) Error() string { return "invalid glob pattern " + e.pattern }
