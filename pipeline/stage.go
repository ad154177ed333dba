package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/kbukum/assetflow/logger"
	"github.com/kbukum/assetflow/process"
	"github.com/kbukum/assetflow/stream"
)

// Env is what a running pipeline hands to each stage.
type Env struct {
	// Concurrency bounds per-record parallelism inside MapParallel.
	Concurrency int
	// Cache is nil when caching is disabled for the pipeline.
	Cache *Cache
	// Logger is tagged with the pipeline name.
	Logger *logger.Logger
	// Runner executes external tools under the global tool limit.
	Runner *process.Runner
}

// Stage transforms a stream of records. Apply only composes operators; no
// work happens until the pipeline pulls from the returned stream.
type Stage interface {
	Name() string
	Apply(in *stream.Stream[Record], env Env) *stream.Stream[Record]
}

// MapFunc transforms a single record.
type MapFunc func(ctx context.Context, rec Record) (Record, error)

type stageFunc struct {
	name  string
	apply func(in *stream.Stream[Record], env Env) *stream.Stream[Record]
}

func (s *stageFunc) Name() string { return s.name }

func (s *stageFunc) Apply(in *stream.Stream[Record], env Env) *stream.Stream[Record] {
	return s.apply(in, env)
}

// NewStage builds a Stage from an Apply function.
func NewStage(name string, apply func(in *stream.Stream[Record], env Env) *stream.Stream[Record]) Stage {
	return &stageFunc{name: name, apply: apply}
}

// Map applies fn to each record in order.
func Map(name string, fn MapFunc) Stage {
	return NewStage(name, func(in *stream.Stream[Record], _ Env) *stream.Stream[Record] {
		return stream.Map(in, guardMap(name, fn))
	})
}

// MapParallel applies fn to up to Env.Concurrency records at once while
// keeping output order equal to input order.
func MapParallel(name string, fn MapFunc) Stage {
	return NewStage(name, func(in *stream.Stream[Record], env Env) *stream.Stream[Record] {
		return stream.OrderedParallel(in, env.Concurrency, guardMap(name, fn))
	})
}

// FlatMap replaces each record with zero or more records.
func FlatMap(name string, fn func(ctx context.Context, rec Record) ([]Record, error)) Stage {
	return NewStage(name, func(in *stream.Stream[Record], _ Env) *stream.Stream[Record] {
		return stream.FlatMap(in, func(ctx context.Context, rec Record) (out []Record, err error) {
			defer recoverStage(name, rec.Path(), &err)
			out, err = fn(ctx, rec)
			return out, wrapStage(name, rec.Path(), err)
		})
	})
}

// Filter keeps the records for which keep returns true.
func Filter(name string, keep func(rec Record) bool) Stage {
	return NewStage(name, func(in *stream.Stream[Record], _ Env) *stream.Stream[Record] {
		return stream.Filter(in, keep)
	})
}

// Reduce collects every record and replaces them with the output of fn.
// fn is not called when the input is empty.
func Reduce(name string, fn func(ctx context.Context, recs []Record) ([]Record, error)) Stage {
	return NewStage(name, func(in *stream.Stream[Record], _ Env) *stream.Stream[Record] {
		all := stream.Reduce(in, func() []Record { return nil }, func(acc []Record, rec Record) ([]Record, error) {
			return append(acc, rec), nil
		})
		return stream.FlatMap(all, func(ctx context.Context, recs []Record) (out []Record, err error) {
			defer recoverStage(name, "", &err)
			out, err = fn(ctx, recs)
			return out, wrapStage(name, "", err)
		})
	})
}

// Tap calls fn for each record and passes it through unchanged.
func Tap(name string, fn func(ctx context.Context, rec Record) error) Stage {
	return NewStage(name, func(in *stream.Stream[Record], _ Env) *stream.Stream[Record] {
		return stream.Tap(in, func(ctx context.Context, rec Record) (err error) {
			defer recoverStage(name, rec.Path(), &err)
			return wrapStage(name, rec.Path(), fn(ctx, rec))
		})
	})
}

// CachedMap is Map memoized in Env.Cache. The cache key covers the stage
// name, fingerprint (the stage configuration), record path and content, so
// changing any of them recomputes. Without a cache it behaves like Map.
func CachedMap(name, fingerprint string, fn MapFunc) Stage {
	return NewStage(name, func(in *stream.Stream[Record], env Env) *stream.Stream[Record] {
		guarded := guardMap(name, fn)
		if env.Cache == nil {
			return stream.Map(in, guarded)
		}
		cache := env.Cache
		log := env.Logger
		return stream.Map(in, func(ctx context.Context, rec Record) (Record, error) {
			key := CacheKey(name, fingerprint, rec)
			out, hit, err := cache.GetOrCompute(ctx, key, func() (Record, error) {
				return guarded(ctx, rec)
			})
			if err == nil && hit && log != nil {
				log.Debug("cache hit", logger.Fields(logger.FieldStage, name, logger.FieldPath, rec.Path()))
			}
			return out, err
		})
	})
}

// Isolate wraps a stage so that any error leaving it is a *StageError
// (unless an upstream stage already produced one) and panics raised while
// pulling from it become errors instead of crashing the build.
func Isolate(s Stage) Stage {
	name := s.Name()
	return NewStage(name, func(in *stream.Stream[Record], env Env) (out *stream.Stream[Record]) {
		defer func() {
			if r := recover(); r != nil {
				err := panicError(name, "", r)
				out = stream.FromFunc(func(context.Context) stream.Iterator[Record] {
					return &failedIter{err: err}
				})
			}
		}()
		applied := s.Apply(in, env)
		return stream.FromFunc(func(ctx context.Context) stream.Iterator[Record] {
			return &guardedIter{name: name, inner: applied.Iter(ctx)}
		})
	})
}

type guardedIter struct {
	name  string
	inner stream.Iterator[Record]
}

func (it *guardedIter) Next(ctx context.Context) (rec Record, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, ok, err = Record{}, false, panicError(it.name, "", r)
		}
	}()
	rec, ok, err = it.inner.Next(ctx)
	if err != nil {
		return Record{}, false, wrapStage(it.name, "", err)
	}
	return rec, ok, nil
}

func (it *guardedIter) Close() error { return it.inner.Close() }

type failedIter struct{ err error }

func (it *failedIter) Next(context.Context) (Record, bool, error) { return Record{}, false, it.err }
func (it *failedIter) Close() error                                { return nil }

func guardMap(name string, fn MapFunc) func(context.Context, Record) (Record, error) {
	return func(ctx context.Context, rec Record) (out Record, err error) {
		defer recoverStage(name, rec.Path(), &err)
		out, err = fn(ctx, rec)
		return out, wrapStage(name, rec.Path(), err)
	}
}

func recoverStage(name, path string, errp *error) {
	if r := recover(); r != nil {
		*errp = panicError(name, path, r)
	}
}

func panicError(name, path string, r any) error {
	return &StageError{Stage: name, Path: path, Cause: fmt.Errorf("panic: %v\n%s", r, debug.Stack())}
}
