package taskfile

import (
	"fmt"

	"github.com/kbukum/assetflow/actions"
	apperrors "github.com/kbukum/assetflow/errors"
	"github.com/kbukum/assetflow/pipeline/stages"
	"github.com/kbukum/assetflow/validation"
)

// Checker validates a loaded taskfile against the available stages, actions
// and storages. Nil registries skip the corresponding name checks.
type Checker struct {
	Stages   *stages.Registry
	Actions  *actions.Registry
	Storages map[string]bool
}

// Validate reports every problem found as one INVALID_TASKFILE error.
// Duplicate task names and dependency problems are left to dag.Graph.
func (c Checker) Validate(tf *Taskfile) error {
	v := validation.New()
	names := make(map[string]bool, len(tf.Tasks))
	for _, t := range tf.Tasks {
		names[t.Name] = true
	}

	for i, t := range tf.Tasks {
		field := fmt.Sprintf("tasks[%d]", i)
		if t.Name != "" {
			field = fmt.Sprintf("tasks[%s]", t.Name)
		}
		v.Merge(field, c.task(t))
	}

	for i, w := range tf.Watch {
		field := fmt.Sprintf("watch[%d]", i)
		v.NotEmpty(field+".globs", w.Globs)
		for _, g := range w.Globs {
			v.Glob(field+".globs", g)
		}
		v.NotEmpty(field+".tasks", w.Tasks)
		for _, name := range w.Tasks {
			v.Custom(names[name], field+".tasks", fmt.Sprintf("unknown task %q", name))
		}
	}

	for _, name := range tf.Default {
		v.Custom(names[name], "default", fmt.Sprintf("unknown task %q", name))
	}

	if !v.HasErrors() {
		return nil
	}
	appErr := v.Validate()
	return apperrors.InvalidTaskfile(tf.Path, appErr.Message).
		WithDetails(appErr.Details).
		WithCause(appErr)
}

func (c Checker) task(t Task) *validation.Validator {
	v := validation.New()
	v.Required("name", t.Name)
	v.Unique("deps", t.Deps)
	v.Min("options.concurrency_limit", t.Options.ConcurrencyLimit, 0)

	if t.Action != "" {
		v.Custom(len(t.Src) == 0, "action", "cannot be combined with src")
		v.Custom(len(t.Stages) == 0, "stages", "only pipeline tasks have stages")
		v.Custom(len(t.Sinks) == 0, "sinks", "only pipeline tasks have sinks")
		if c.Actions != nil {
			v.Custom(c.Actions.Has(t.Action), "action", fmt.Sprintf("unknown action %q", t.Action))
		}
		return v
	}

	v.Custom(len(t.With) == 0, "with", "only action tasks take with")
	if len(t.Src) == 0 {
		v.Custom(len(t.Stages) == 0 && len(t.Sinks) == 0, "src", "is required for pipeline tasks")
		return v
	}
	for _, g := range t.Src {
		v.Glob("src", g)
	}
	for i, s := range t.Stages {
		field := fmt.Sprintf("stages[%d].use", i)
		v.Required(field, s.Use)
		if c.Stages != nil && s.Use != "" {
			v.Custom(c.Stages.Has(s.Use), field, fmt.Sprintf("unknown stage %q", s.Use))
		}
	}
	v.Custom(len(t.Sinks) > 0 || t.Options.DestinationRoot != "", "sinks",
		"a sink or options.destination_root is required")
	for i, s := range t.Sinks {
		field := fmt.Sprintf("sinks[%d]", i)
		v.Custom((s.Dest == "") != (s.Storage == ""), field, "exactly one of dest or storage is required")
		if s.Storage != "" && c.Storages != nil {
			v.Custom(c.Storages[s.Storage], field+".storage", fmt.Sprintf("unknown storage %q", s.Storage))
		}
	}
	return v
}
