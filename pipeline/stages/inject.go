package stages

import (
	"bytes"
	"context"
	"errors"
	"path"
	"strings"

	"github.com/kbukum/assetflow/pipeline"
)

// InjectOptions replaces Placeholder in each record with one tag per file
// matched by Files under Root. Template is the tag format, with "{path}"
// expanding to the matched path; by default it is chosen from the matched
// file's extension (stylesheet link or script tag).
type InjectOptions struct {
	Placeholder string   `mapstructure:"placeholder"`
	Files       []string `mapstructure:"files"`
	Root        string   `mapstructure:"root"`
	Prefix      string   `mapstructure:"prefix"`
	Template    string   `mapstructure:"template"`
}

// DefaultPlaceholder marks where tags are injected.
const DefaultPlaceholder = "<!-- inject -->"

var defaultTemplates = map[string]string{
	".css": `<link rel="stylesheet" href="{path}">`,
	".js":  `<script src="{path}"></script>`,
}

// NewInject builds the inject stage.
func NewInject(opts Options) (pipeline.Stage, error) {
	var o InjectOptions
	if err := Decode(opts, &o); err != nil {
		return nil, err
	}
	return Inject(o)
}

// Inject returns the inject stage. Files are globbed once per record so a
// rebuild picks up added or removed dependencies.
func Inject(o InjectOptions) (pipeline.Stage, error) {
	if len(o.Files) == 0 {
		return nil, errors.New("files is required")
	}
	if o.Placeholder == "" {
		o.Placeholder = DefaultPlaceholder
	}
	src := &pipeline.GlobSource{Root: o.Root, Patterns: o.Files}
	if err := src.Validate(); err != nil {
		return nil, err
	}

	return pipeline.Map("inject", func(_ context.Context, rec pipeline.Record) (pipeline.Record, error) {
		content := rec.Content()
		if !bytes.Contains(content, []byte(o.Placeholder)) {
			return rec, nil
		}
		s := *src
		if s.Root == "" {
			s.Root, _ = rec.Meta(pipeline.MetaRoot)
		}
		matches, err := s.Match()
		if err != nil {
			return pipeline.Record{}, err
		}
		var tags []string
		for _, m := range matches {
			tmpl := o.Template
			if tmpl == "" {
				tmpl = defaultTemplates[path.Ext(m)]
			}
			if tmpl == "" {
				continue
			}
			tags = append(tags, strings.ReplaceAll(tmpl, "{path}", o.Prefix+m))
		}
		out := bytes.ReplaceAll(content, []byte(o.Placeholder), []byte(strings.Join(tags, "\n")))
		return rec.WithContent(out), nil
	}), nil
}
