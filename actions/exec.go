package actions

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/kbukum/assetflow/dag"
	"github.com/kbukum/assetflow/logger"
	"github.com/kbukum/assetflow/process"
)

// ExecOptions runs a command once per task execution.
type ExecOptions struct {
	Command string        `mapstructure:"command"`
	Args    []string      `mapstructure:"args"`
	Dir     string        `mapstructure:"dir"`
	Env     []string      `mapstructure:"env"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// NewExec builds the exec action.
func NewExec(opts Options, env Env) (dag.Work, error) {
	var o ExecOptions
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	if o.Command == "" {
		return nil, errors.New("command is required")
	}
	dir := o.Dir
	if env.Root != "" && !filepath.IsAbs(dir) {
		dir = filepath.Join(env.Root, dir)
	}

	runner := env.runner()
	log := env.logger().WithComponent("exec")
	return dag.ActionFunc(func(ctx context.Context) error {
		if o.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.Timeout)
			defer cancel()
		}
		res, err := runner.Run(ctx, process.Command{
			Binary: o.Command,
			Args:   o.Args,
			Dir:    dir,
			Env:    o.Env,
		})
		if err != nil {
			return err
		}
		if out := strings.TrimSpace(string(res.Stdout)); out != "" {
			log.Debug(out, logger.Fields("command", o.Command))
		}
		return nil
	}), nil
}
