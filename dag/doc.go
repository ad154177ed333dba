// Package dag registers build tasks into a dependency graph and runs them.
//
// A Graph holds Tasks in registration order. Validate rejects dangling
// dependencies and cycles before anything executes. The Scheduler runs the
// dependency closure of the requested targets: a task is dispatched as soon
// as all of its dependencies have Succeeded, up to MaxParallel at a time, and
// ties between ready tasks go to the one registered first.
//
//	g := dag.NewGraph()
//	_ = g.Register(dag.Task{Name: "styles", Work: dag.PipelineWork{Pipeline: styles}})
//	_ = g.Register(dag.Task{Name: "html", Deps: []string{"styles"}, Work: dag.PipelineWork{Pipeline: html}})
//
//	s := dag.NewScheduler(4, log)
//	res, err := s.Run(ctx, g, []string{"html"})
//
// A failed task never stops unrelated work. Its transitive dependents are
// marked Skipped with a SkippedError naming the failure.
package dag
