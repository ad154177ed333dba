package actions

import (
	"context"
	"errors"
	"os"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kbukum/assetflow/dag"
	"github.com/kbukum/assetflow/logger"
	"github.com/kbukum/assetflow/storage/local"
)

// CleanOptions removes build output. Paths are globs relative to Env.Root
// and can never reach outside it.
type CleanOptions struct {
	Paths []string `mapstructure:"paths"`
}

// NewClean builds the clean action.
func NewClean(opts Options, env Env) (dag.Work, error) {
	var o CleanOptions
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	if len(o.Paths) == 0 {
		return nil, errors.New("paths is required")
	}
	for _, p := range o.Paths {
		if !doublestar.ValidatePattern(p) {
			return nil, doublestar.ErrBadPattern
		}
	}
	root := env.Root
	if root == "" {
		root = "."
	}

	log := env.logger().WithComponent("clean")
	return dag.WorkFunc(func(ctx context.Context) (int, error) {
		st, err := local.NewStorage(root)
		if err != nil {
			return 0, err
		}
		removed := 0
		for _, pattern := range o.Paths {
			matches, err := doublestar.Glob(os.DirFS(root), pattern)
			if err != nil {
				return removed, err
			}
			for _, m := range matches {
				if err := ctx.Err(); err != nil {
					return removed, err
				}
				if err := st.Delete(ctx, m); err != nil {
					return removed, err
				}
				removed++
			}
		}
		log.Debug("cleaned", logger.Fields("removed", removed))
		return removed, nil
	}), nil
}
