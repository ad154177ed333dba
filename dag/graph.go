package dag

import (
	"errors"
	"slices"
)

// Graph holds tasks in registration order. Edges run from a task to each of
// its dependencies.
type Graph struct {
	tasks []Task
	index map[string]int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

// Register adds a task. Dependencies are resolved later by Validate, so tasks
// may be registered in any order.
func (g *Graph) Register(t Task) error {
	if t.Name == "" {
		return errors.New("dag: task name is required")
	}
	if _, ok := g.index[t.Name]; ok {
		return &DuplicateTaskError{Task: t.Name}
	}
	t.Deps = slices.Clone(t.Deps)
	g.index[t.Name] = len(g.tasks)
	g.tasks = append(g.tasks, t)
	return nil
}

// MustRegister is Register that panics on error.
func (g *Graph) MustRegister(tasks ...Task) *Graph {
	for _, t := range tasks {
		if err := g.Register(t); err != nil {
			panic(err)
		}
	}
	return g
}

// Len returns the number of registered tasks.
func (g *Graph) Len() int { return len(g.tasks) }

// Task returns the task registered under name.
func (g *Graph) Task(name string) (Task, bool) {
	i, ok := g.index[name]
	if !ok {
		return Task{}, false
	}
	return g.tasks[i], true
}

// Tasks returns all tasks in registration order.
func (g *Graph) Tasks() []Task {
	return slices.Clone(g.tasks)
}

// Names returns task names in registration order.
func (g *Graph) Names() []string {
	names := make([]string, len(g.tasks))
	for i, t := range g.tasks {
		names[i] = t.Name
	}
	return names
}

// Validate checks that every dependency is registered and that there are no
// cycles. Unknown dependencies are reported before cycles.
func (g *Graph) Validate() error {
	for _, t := range g.tasks {
		for _, d := range t.Deps {
			if _, ok := g.index[d]; !ok {
				return &UnknownDependencyError{Task: t.Name, Missing: d}
			}
		}
	}
	if cycle := g.findCycle(); cycle != nil {
		return &CyclicDependencyError{Cycle: cycle}
	}
	return nil
}

// findCycle runs a depth-first search in registration order and returns the
// first cycle it closes.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make([]int, len(g.tasks))
	var stack []int
	var cycle []string

	var visit func(i int) bool
	visit = func(i int) bool {
		color[i] = grey
		stack = append(stack, i)
		for _, d := range g.tasks[i].Deps {
			j := g.index[d]
			switch color[j] {
			case grey:
				start := slices.Index(stack, j)
				for _, k := range stack[start:] {
					cycle = append(cycle, g.tasks[k].Name)
				}
				cycle = append(cycle, g.tasks[j].Name)
				return true
			case white:
				if visit(j) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[i] = black
		return false
	}

	for i := range g.tasks {
		if color[i] == white && visit(i) {
			return cycle
		}
	}
	return nil
}

// TopologicalOrder returns every task with dependencies first. Among tasks
// that are ready at the same time the earliest registered comes first.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g.order(g.allIndexes()), nil
}

// Levels groups tasks into waves that can run in parallel: every task's
// dependencies are in earlier levels. Each level is in registration order.
func (g *Graph) Levels() ([][]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g.levels(g.allIndexes()), nil
}

// LevelsOf is Levels restricted to the named tasks, treating dependencies
// outside the set as already built.
func (g *Graph) LevelsOf(names []string) ([][]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	set, err := g.indexesOf(names)
	if err != nil {
		return nil, err
	}
	return g.levels(set), nil
}

// Closure returns the targets and all of their transitive dependencies in
// registration order.
func (g *Graph) Closure(targets []string) ([]string, error) {
	set, err := g.closure(targets)
	if err != nil {
		return nil, err
	}
	return g.namesOf(set), nil
}

// Dependents returns the tasks that depend on name, directly or transitively,
// in registration order.
func (g *Graph) Dependents(name string) ([]string, error) {
	i, ok := g.index[name]
	if !ok {
		return nil, &UnknownTaskError{Task: name}
	}
	rev := g.reverse()
	seen := map[int]bool{}
	queue := []int{i}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range rev[cur] {
			if !seen[d] {
				seen[d] = true
				queue = append(queue, d)
			}
		}
	}
	delete(seen, i)
	return g.namesOf(seen), nil
}

func (g *Graph) allIndexes() map[int]bool {
	set := make(map[int]bool, len(g.tasks))
	for i := range g.tasks {
		set[i] = true
	}
	return set
}

func (g *Graph) indexesOf(names []string) (map[int]bool, error) {
	set := make(map[int]bool, len(names))
	for _, n := range names {
		i, ok := g.index[n]
		if !ok {
			return nil, &UnknownTaskError{Task: n}
		}
		set[i] = true
	}
	return set, nil
}

func (g *Graph) closure(targets []string) (map[int]bool, error) {
	set, err := g.indexesOf(targets)
	if err != nil {
		return nil, err
	}
	queue := make([]int, 0, len(set))
	for i := range set {
		queue = append(queue, i)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range g.tasks[cur].Deps {
			j, ok := g.index[d]
			if !ok {
				return nil, &UnknownDependencyError{Task: g.tasks[cur].Name, Missing: d}
			}
			if !set[j] {
				set[j] = true
				queue = append(queue, j)
			}
		}
	}
	return set, nil
}

// reverse maps each task index to the indexes of its direct dependents, in
// registration order.
func (g *Graph) reverse() [][]int {
	rev := make([][]int, len(g.tasks))
	for i, t := range g.tasks {
		for _, d := range t.Deps {
			if j, ok := g.index[d]; ok && !slices.Contains(rev[j], i) {
				rev[j] = append(rev[j], i)
			}
		}
	}
	return rev
}

// pendingDeps counts, for each task in set, its distinct dependencies that
// are also in set.
func (g *Graph) pendingDeps(set map[int]bool) map[int]int {
	counts := make(map[int]int, len(set))
	for i := range set {
		seen := map[int]bool{}
		for _, d := range g.tasks[i].Deps {
			j := g.index[d]
			if set[j] && !seen[j] {
				seen[j] = true
				counts[i]++
			}
		}
	}
	return counts
}

func (g *Graph) order(set map[int]bool) []string {
	counts := g.pendingDeps(set)
	rev := g.reverse()
	var ready []int
	for i := range set {
		if counts[i] == 0 {
			ready = insertSorted(ready, i)
		}
	}
	out := make([]string, 0, len(set))
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		out = append(out, g.tasks[i].Name)
		for _, d := range rev[i] {
			if !set[d] {
				continue
			}
			counts[d]--
			if counts[d] == 0 {
				ready = insertSorted(ready, d)
			}
		}
	}
	return out
}

func (g *Graph) levels(set map[int]bool) [][]string {
	counts := g.pendingDeps(set)
	rev := g.reverse()
	var level []int
	for i := range set {
		if counts[i] == 0 {
			level = insertSorted(level, i)
		}
	}
	var out [][]string
	for len(level) > 0 {
		names := make([]string, len(level))
		var next []int
		for k, i := range level {
			names[k] = g.tasks[i].Name
			for _, d := range rev[i] {
				if !set[d] {
					continue
				}
				counts[d]--
				if counts[d] == 0 {
					next = insertSorted(next, d)
				}
			}
		}
		out = append(out, names)
		level = next
	}
	return out
}

func (g *Graph) namesOf(set map[int]bool) []string {
	idx := make([]int, 0, len(set))
	for i := range set {
		idx = append(idx, i)
	}
	slices.Sort(idx)
	names := make([]string, len(idx))
	for k, i := range idx {
		names[k] = g.tasks[i].Name
	}
	return names
}

func insertSorted(s []int, v int) []int {
	pos, _ := slices.BinarySearch(s, v)
	return slices.Insert(s, pos, v)
}
