package stream

import (
	"context"
	"sync"
)

// Buffer adds a buffered channel between operators so the producer can run
// ahead of the consumer by up to size values.
func Buffer[T any](s *Stream[T], size int) *Stream[T] {
	if size <= 0 {
		size = 1
	}
	return &Stream[T]{
		create: func(ctx context.Context) Iterator[T] {
			source := s.create(ctx)
			bufCtx, cancel := context.WithCancel(ctx)
			ch := make(chan result[T], size)
			done := make(chan struct{})

			go func() {
				defer close(done)
				defer close(ch)
				for {
					val, ok, err := source.Next(bufCtx)
					if err != nil {
						select {
						case ch <- result[T]{err: err}:
						case <-bufCtx.Done():
						}
						return
					}
					if !ok {
						return
					}
					select {
					case ch <- result[T]{val: val, ok: true}:
					case <-bufCtx.Done():
						return
					}
				}
			}()

			return &channelIter[T]{
				ch: ch,
				closer: func() error {
					cancel()
					<-done
					return source.Close()
				},
			}
		},
	}
}

// OrderedParallel applies fn to up to n values concurrently and yields the
// results in input order. n <= 1 degrades to Map.
func OrderedParallel[I, O any](s *Stream[I], n int, fn func(context.Context, I) (O, error)) *Stream[O] {
	if n <= 1 {
		return Map(s, fn)
	}
	return &Stream[O]{
		create: func(ctx context.Context) Iterator[O] {
			source := s.create(ctx)
			workerCtx, cancel := context.WithCancel(ctx)
			slots := make(chan chan result[O], n)
			sem := make(chan struct{}, n)
			done := make(chan struct{})
			var wg sync.WaitGroup

			go func() {
				defer close(done)
				defer close(slots)
				for {
					val, ok, err := source.Next(workerCtx)
					if err != nil {
						slot := make(chan result[O], 1)
						slot <- result[O]{err: err}
						select {
						case slots <- slot:
						case <-workerCtx.Done():
						}
						return
					}
					if !ok {
						return
					}
					select {
					case sem <- struct{}{}:
					case <-workerCtx.Done():
						return
					}
					slot := make(chan result[O], 1)
					select {
					case slots <- slot:
					case <-workerCtx.Done():
						<-sem
						return
					}
					wg.Add(1)
					go func(v I) {
						defer wg.Done()
						defer func() { <-sem }()
						o, err := fn(workerCtx, v)
						slot <- result[O]{val: o, ok: err == nil, err: err}
					}(val)
				}
			}()

			return &orderedIter[O]{
				slots: slots,
				closer: func() error {
					cancel()
					<-done
					wg.Wait()
					return source.Close()
				},
			}
		},
	}
}

type orderedIter[O any] struct {
	slots  <-chan chan result[O]
	closer func() error
	closed bool
}

func (it *orderedIter[O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	select {
	case slot, open := <-it.slots:
		if !open {
			return zero, false, nil
		}
		select {
		case r := <-slot:
			if r.err != nil {
				return zero, false, r.err
			}
			return r.val, true, nil
		case <-ctx.Done():
			return zero, false, ctx.Err()
		}
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

func (it *orderedIter[O]) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.closer()
}
