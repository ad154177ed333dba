package dag_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/kbukum/assetflow/dag"
	"github.com/kbukum/assetflow/dag/dagtest"
	apperrors "github.com/kbukum/assetflow/errors"
)

func siteGraph() *dag.Graph {
	return dagtest.NewGraphBuilder().
		Task("html", "styles", "scripts").
		Task("styles").
		Task("scripts").
		Task("images").
		Build()
}

func TestGraph_Register(t *testing.T) {
	g := dag.NewGraph()
	if err := g.Register(dag.Task{Name: "styles"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var dup *dag.DuplicateTaskError
	if err := g.Register(dag.Task{Name: "styles"}); !errors.As(err, &dup) || dup.Task != "styles" {
		t.Fatalf("expected DuplicateTaskError, got %v", err)
	}
	if err := g.Register(dag.Task{}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if g.Len() != 1 {
		t.Errorf("expected 1 task, got %d", g.Len())
	}
}

func TestGraph_RegisterCopiesDeps(t *testing.T) {
	deps := []string{"a"}
	g := dag.NewGraph()
	_ = g.Register(dag.Task{Name: "b", Deps: deps})
	deps[0] = "mutated"

	task, _ := g.Task("b")
	if task.Deps[0] != "a" {
		t.Errorf("expected registered deps to be isolated, got %v", task.Deps)
	}
}

func TestGraph_ValidateUnknownDependency(t *testing.T) {
	g := dagtest.NewGraphBuilder().Task("html", "styles").Build()

	var unknown *dag.UnknownDependencyError
	err := g.Validate()
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownDependencyError, got %v", err)
	}
	if unknown.Task != "html" || unknown.Missing != "styles" {
		t.Errorf("unexpected error fields %+v", unknown)
	}
	if apperrors.Classify(err) != apperrors.ErrCodeInvalidGraph {
		t.Errorf("expected INVALID_GRAPH, got %s", apperrors.Classify(err))
	}
}

func TestGraph_ValidateCycle(t *testing.T) {
	tests := []struct {
		name  string
		graph *dag.Graph
		want  []string
	}{
		{
			"three tasks",
			dagtest.NewGraphBuilder().Task("a", "b").Task("b", "c").Task("c", "a").Build(),
			[]string{"a", "b", "c", "a"},
		},
		{
			"self dependency",
			dagtest.NewGraphBuilder().Task("a", "a").Build(),
			[]string{"a", "a"},
		},
		{
			"cycle behind acyclic prefix",
			dagtest.NewGraphBuilder().Task("root", "x").Task("x", "y").Task("y", "x").Build(),
			[]string{"x", "y", "x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cyc *dag.CyclicDependencyError
			if err := tt.graph.Validate(); !errors.As(err, &cyc) {
				t.Fatalf("expected CyclicDependencyError, got %v", err)
			}
			if !slices.Equal(cyc.Cycle, tt.want) {
				t.Errorf("cycle = %v, want %v", cyc.Cycle, tt.want)
			}
		})
	}
}

func TestGraph_TopologicalOrder(t *testing.T) {
	g := siteGraph()
	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"styles", "scripts", "html", "images"}
	if !slices.Equal(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}

	pos := map[string]int{}
	for i, n := range order {
		pos[n] = i
	}
	for _, task := range g.Tasks() {
		for _, d := range task.Deps {
			if pos[d] >= pos[task.Name] {
				t.Errorf("%s ordered before its dependency %s", task.Name, d)
			}
		}
	}
}

func TestGraph_TopologicalOrderRejectsInvalid(t *testing.T) {
	g := dagtest.NewGraphBuilder().Task("a", "b").Task("b", "a").Build()
	if _, err := g.TopologicalOrder(); err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestGraph_Levels(t *testing.T) {
	levels, err := siteGraph().Levels()
	if err != nil {
		t.Fatal(err)
	}
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %v", levels)
	}
	if !slices.Equal(levels[0], []string{"styles", "scripts", "images"}) {
		t.Errorf("level 0 = %v", levels[0])
	}
	if !slices.Equal(levels[1], []string{"html"}) {
		t.Errorf("level 1 = %v", levels[1])
	}

	only, err := siteGraph().LevelsOf([]string{"html"})
	if err != nil {
		t.Fatal(err)
	}
	if len(only) != 1 || !slices.Equal(only[0], []string{"html"}) {
		t.Errorf("LevelsOf(html) = %v", only)
	}
}

func TestGraph_ClosureAndDependents(t *testing.T) {
	g := siteGraph()

	closure, err := g.Closure([]string{"html"})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(closure, []string{"html", "styles", "scripts"}) {
		t.Errorf("closure = %v", closure)
	}

	deps, err := g.Dependents("styles")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(deps, []string{"html"}) {
		t.Errorf("dependents = %v", deps)
	}

	var unknown *dag.UnknownTaskError
	if _, err := g.Closure([]string{"fonts"}); !errors.As(err, &unknown) {
		t.Errorf("expected UnknownTaskError, got %v", err)
	}
	if _, err := g.Dependents("fonts"); !errors.As(err, &unknown) {
		t.Errorf("expected UnknownTaskError, got %v", err)
	}
}

func TestGraph_DependentsTransitive(t *testing.T) {
	g := dagtest.NewGraphBuilder().
		Task("a").
		Task("b", "a").
		Task("c", "b").
		Task("d").
		Build()
	deps, _ := g.Dependents("a")
	if !slices.Equal(deps, []string{"b", "c"}) {
		t.Errorf("dependents = %v", deps)
	}
}
