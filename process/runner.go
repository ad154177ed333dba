package process

import (
	"context"
	"time"

	"github.com/kbukum/assetflow/logger"
	"github.com/kbukum/assetflow/resilience"
)

// Config configures a Runner.
type Config struct {
	// MaxConcurrent bounds how many tools run at once across all tasks.
	// Zero means unbounded.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	// GracePeriod is the default grace period for SIGTERM→SIGKILL.
	GracePeriod time.Duration `yaml:"grace_period" mapstructure:"grace_period"`
	// Timeout is the default execution timeout. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Runner executes commands under a shared concurrency limit so CPU-heavy
// tools started by concurrent tasks do not saturate the machine.
type Runner struct {
	config   Config
	bulkhead *resilience.Bulkhead
	log      *logger.Logger
}

// NewRunner creates a Runner. A nil logger discards output.
func NewRunner(cfg Config, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	r := &Runner{config: cfg, log: log.WithComponent("process")}
	if cfg.MaxConcurrent > 0 {
		r.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "process",
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       -1,
		})
	}
	return r
}

// Run executes cmd, applying runner-level defaults and the concurrency limit.
func (r *Runner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.GracePeriod == 0 && r.config.GracePeriod > 0 {
		cmd.GracePeriod = r.config.GracePeriod
	}
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	if r.bulkhead != nil {
		if err := r.bulkhead.Acquire(ctx); err != nil {
			return nil, err
		}
		defer r.bulkhead.Release()
	}

	r.log.Debug("running command", logger.Fields("command", cmd.String(), "dir", cmd.Dir))
	res, err := Run(ctx, cmd)
	if err != nil {
		r.log.Debug("command failed", logger.MergeWithError(logger.Fields("command", cmd.Binary), err))
	}
	return res, err
}
