package stages

import (
	"context"
	"regexp"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/tdewolff/minify/v2/xml"

	"github.com/kbukum/assetflow/pipeline"
)

var mediaTypes = map[string]string{
	".css":  "text/css",
	".htm":  "text/html",
	".html": "text/html",
	".js":   "application/javascript",
	".mjs":  "application/javascript",
	".json": "application/json",
	".svg":  "image/svg+xml",
	".xml":  "text/xml",
}

// MinifyOptions configures the minify stage. Media forces one media type
// for every record instead of choosing by extension.
type MinifyOptions struct {
	Media string `mapstructure:"media"`
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`), js.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`[/+]json$`), json.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`[/+]xml$`), xml.Minify)
	return m
}

// NewMinify builds the minify stage. Records with an extension it does not
// know pass through unchanged.
func NewMinify(opts Options) (pipeline.Stage, error) {
	var o MinifyOptions
	if err := Decode(opts, &o); err != nil {
		return nil, err
	}
	return Minify(o), nil
}

// Minify returns the minify stage.
func Minify(o MinifyOptions) pipeline.Stage {
	m := newMinifier()
	return pipeline.MapParallel("minify", func(_ context.Context, rec pipeline.Record) (pipeline.Record, error) {
		media := o.Media
		if media == "" {
			media = mediaTypes[strings.ToLower(rec.Ext())]
		}
		if media == "" {
			return rec, nil
		}
		out, err := m.Bytes(media, rec.Content())
		if err != nil {
			return pipeline.Record{}, err
		}
		return rec.WithContent(out), nil
	})
}
