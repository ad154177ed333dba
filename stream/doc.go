// Package stream provides lazy, pull-based iterators and the operators the
// record pipeline and the watcher are built from.
//
// Streams are lazy: no work happens until values are pulled via Collect,
// Drain, or ForEach. Each operator pulls from the previous one on demand,
// which gives natural backpressure without explicit flow control. A Stream
// can be opened any number of times; every Iter call builds a fresh chain.
//
// # Operators
//
// Synchronous (single-goroutine):
//
//   - Map: transform each value
//   - FlatMap: transform each value into multiple values
//   - Filter: keep values matching a predicate
//   - Tap: side-effect without altering the value
//   - Reduce: accumulate all values into one result
//   - Concat: join streams sequentially
//
// Concurrent (multi-goroutine):
//
//   - Buffer: decouple producer and consumer with a buffered channel
//   - OrderedParallel: Map with a bounded worker pool, input order preserved
//   - Coalesce: group values that arrive within a quiet window
//
// # Usage
//
//	src := stream.FromSlice([]int{1, 2, 3, 4, 5})
//	doubled := stream.Map(src, func(_ context.Context, n int) (int, error) {
//	    return n * 2, nil
//	})
//	evens := stream.Filter(doubled, func(n int) bool { return n%2 == 0 })
//	results, _ := stream.Collect(ctx, evens)
package stream
