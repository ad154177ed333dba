package stages

import (
	"bytes"
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/kbukum/assetflow/pipeline"
	"github.com/kbukum/assetflow/process"
	"github.com/kbukum/assetflow/stream"
)

// ExecOptions runs an external tool per record. The record content is piped
// to stdin and stdout becomes the new content. In Args, "{path}" expands to
// the record path and "{source}" to the file it was read from.
type ExecOptions struct {
	Command string        `mapstructure:"command"`
	Args    []string      `mapstructure:"args"`
	Dir     string        `mapstructure:"dir"`
	Env     []string      `mapstructure:"env"`
	Ext     string        `mapstructure:"ext"`
	Cache   bool          `mapstructure:"cache"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Check runs the tool for its exit status only and keeps the content,
	// for linters.
	Check bool `mapstructure:"check"`
}

// NewExec builds the exec stage.
func NewExec(opts Options) (pipeline.Stage, error) {
	var o ExecOptions
	if err := Decode(opts, &o); err != nil {
		return nil, err
	}
	return Exec(o)
}

// Exec returns a stage that transforms records with an external command.
// Cached runs are keyed on the command line and the record content.
func Exec(o ExecOptions) (pipeline.Stage, error) {
	if o.Command == "" {
		return nil, errors.New("command is required")
	}
	name := "exec:" + path.Base(o.Command)
	fingerprint := strings.Join(append([]string{o.Command, o.Ext, boolFlag(o.Check)}, o.Args...), "\x00")

	build := func(runner *process.Runner) pipeline.MapFunc {
		return func(ctx context.Context, rec pipeline.Record) (pipeline.Record, error) {
			if o.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, o.Timeout)
				defer cancel()
			}
			res, err := runner.Run(ctx, process.Command{
				Binary: o.Command,
				Args:   expandArgs(o.Args, rec),
				Dir:    o.Dir,
				Env:    o.Env,
				Stdin:  bytes.NewReader(rec.Content()),
			})
			if err != nil {
				return pipeline.Record{}, err
			}
			out := rec
			if !o.Check {
				out = out.WithContent(res.Stdout)
			}
			if o.Ext != "" {
				out = out.WithPath(replaceExt(out.Path(), o.Ext))
			}
			return out, nil
		}
	}

	return pipeline.NewStage(name, func(in *stream.Stream[pipeline.Record], env pipeline.Env) *stream.Stream[pipeline.Record] {
		runner := env.Runner
		if runner == nil {
			runner = process.NewRunner(process.Config{}, env.Logger)
		}
		var st pipeline.Stage
		if o.Cache {
			st = pipeline.CachedMap(name, fingerprint, build(runner))
		} else {
			st = pipeline.MapParallel(name, build(runner))
		}
		return st.Apply(in, env)
	}), nil
}

func expandArgs(args []string, rec pipeline.Record) []string {
	src, _ := rec.Meta(pipeline.MetaSource)
	out := make([]string, len(args))
	for i, a := range args {
		a = strings.ReplaceAll(a, "{path}", rec.Path())
		out[i] = strings.ReplaceAll(a, "{source}", src)
	}
	return out
}

func replaceExt(p, ext string) string {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.TrimSuffix(p, path.Ext(p)) + ext
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
