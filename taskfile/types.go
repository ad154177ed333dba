package taskfile

import (
	"fmt"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/assetflow/pipeline"
	"github.com/kbukum/assetflow/resilience"
)

// File is one parsed taskfile, before includes are resolved.
type File struct {
	Version  string           `yaml:"version" toml:"version"`
	Includes []string         `yaml:"includes" toml:"includes"`
	Default  []string         `yaml:"default" toml:"default"`
	Options  pipeline.Options `yaml:"options" toml:"options"`
	Tasks    []TaskDef        `yaml:"tasks" toml:"tasks"`
	Watch    []WatchDef       `yaml:"watch" toml:"watch"`
}

// TaskDef declares one task.
type TaskDef struct {
	Name        string     `yaml:"name" toml:"name"`
	Description string     `yaml:"desc" toml:"desc"`
	Deps        StringList `yaml:"deps" toml:"deps"`

	// Pipeline tasks.
	Src     StringList        `yaml:"src" toml:"src"`
	Dot     bool              `yaml:"dot" toml:"dot"`
	Stages  []StageDef        `yaml:"stages" toml:"stages"`
	Sinks   []SinkDef         `yaml:"sinks" toml:"sinks"`
	Options *pipeline.Options `yaml:"options" toml:"options"`

	// Action tasks.
	Action string         `yaml:"action" toml:"action"`
	With   map[string]any `yaml:"with" toml:"with"`

	Retry *resilience.RetryConfig `yaml:"retry" toml:"retry"`
}

// Kind reports what the task runs.
func (t TaskDef) Kind() string {
	switch {
	case t.Action != "":
		return "action"
	case len(t.Src) > 0:
		return "pipeline"
	default:
		return "group"
	}
}

// StageDef configures one stage of a pipeline task.
type StageDef struct {
	Use  string         `yaml:"use" toml:"use"`
	With map[string]any `yaml:"with" toml:"with"`
}

// SinkDef is a pipeline output: a local directory or a named storage.
type SinkDef struct {
	Dest    string `yaml:"dest" toml:"dest"`
	Storage string `yaml:"storage" toml:"storage"`
}

// WatchDef maps file globs to the tasks to re-run when they change.
type WatchDef struct {
	Name  string     `yaml:"name" toml:"name"`
	Globs StringList `yaml:"globs" toml:"globs"`
	Tasks StringList `yaml:"tasks" toml:"tasks"`
}

// StringList accepts a single string or a list of strings in YAML.
type StringList []string

func (l *StringList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		var s string
		if err := n.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	case yaml.SequenceNode:
		var ss []string
		if err := n.Decode(&ss); err != nil {
			return err
		}
		*l = ss
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", n.Line)
}
