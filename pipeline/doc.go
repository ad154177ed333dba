// Package pipeline turns a set of source files into published artifacts by
// pulling Records through an ordered list of Stages into one or more Sinks.
//
// Pipelines are lazy: the Source is globbed when Run opens it and each file
// is read only when the first stage pulls it. Stages never write; only sinks
// do, and every sink write is all-or-nothing per record.
//
//	p := &pipeline.Pipeline{
//	    Name:   "styles",
//	    Source: &pipeline.GlobSource{Patterns: []string{"app/styles/**/*.css"}},
//	    Stages: []pipeline.Stage{
//	        pipeline.Map("strip-comments", stripComments),
//	        pipeline.Reduce("bundle", bundle),
//	    },
//	    Options: pipeline.Options{SourceRoot: ".", DestinationRoot: "dist"},
//	}
//	res, err := p.Run(ctx)
//
// # Stage constructors
//
//   - Map, MapParallel: one record in, one record out
//   - FlatMap: one record in, zero or more out
//   - Filter: drop records
//   - Reduce: all records in, zero or more out (concatenation, manifests)
//   - Tap: observe records without changing them
//   - CachedMap: Map memoized in the content-addressed Cache
//
// Every stage is wrapped by Isolate, which reports failures as *StageError
// exactly once and recovers panics.
package pipeline
