package stages

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/kbukum/assetflow/pipeline"
)

// ConcatOptions joins every record into File, in input order.
type ConcatOptions struct {
	File      string  `mapstructure:"file"`
	Separator *string `mapstructure:"separator"`
}

// NewConcat builds the concat stage.
func NewConcat(opts Options) (pipeline.Stage, error) {
	var o ConcatOptions
	if err := Decode(opts, &o); err != nil {
		return nil, err
	}
	if o.File == "" {
		return nil, errors.New("file is required")
	}
	sep := "\n"
	if o.Separator != nil {
		sep = *o.Separator
	}
	return Concat(o.File, sep), nil
}

// Concat returns a stage that bundles all records into one file. Metadata
// of the first record is kept. Nothing is emitted for an empty input.
func Concat(file, separator string) pipeline.Stage {
	return pipeline.Reduce("concat", func(_ context.Context, recs []pipeline.Record) ([]pipeline.Record, error) {
		var buf bytes.Buffer
		for i, r := range recs {
			if i > 0 {
				buf.WriteString(separator)
			}
			buf.Write(r.Content())
		}
		out := recs[0].WithPath(file).WithContent(buf.Bytes())
		return []pipeline.Record{out}, nil
	})
}

// NewBanner builds the banner stage, which prepends text to every record.
// "{path}" in the text expands to the record path.
func NewBanner(opts Options) (pipeline.Stage, error) {
	var o struct {
		Text string `mapstructure:"text"`
	}
	if err := Decode(opts, &o); err != nil {
		return nil, err
	}
	if o.Text == "" {
		return nil, errors.New("text is required")
	}
	return pipeline.Map("banner", func(_ context.Context, rec pipeline.Record) (pipeline.Record, error) {
		text := strings.ReplaceAll(o.Text, "{path}", rec.Path())
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		return rec.WithContent(append([]byte(text), rec.Content()...)), nil
	}), nil
}

// NewReplace builds the replace stage. Replacement may use $1 style
// references to pattern groups.
func NewReplace(opts Options) (pipeline.Stage, error) {
	var o struct {
		Pattern     string `mapstructure:"pattern"`
		Replacement string `mapstructure:"replacement"`
	}
	if err := Decode(opts, &o); err != nil {
		return nil, err
	}
	if o.Pattern == "" {
		return nil, errors.New("pattern is required")
	}
	re, err := regexp.Compile(o.Pattern)
	if err != nil {
		return nil, err
	}
	repl := []byte(o.Replacement)
	return pipeline.Map("replace", func(_ context.Context, rec pipeline.Record) (pipeline.Record, error) {
		return rec.WithContent(re.ReplaceAll(rec.Content(), repl)), nil
	}), nil
}
