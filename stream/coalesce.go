package stream

import (
	"context"
	"time"
)

// Coalesce groups values into batches. A batch starts with the first value
// received and is emitted once no new value has arrived for quiet. Values
// that arrive while the consumer is busy are held and form the next batch.
func Coalesce[T any](s *Stream[T], quiet time.Duration) *Stream[[]T] {
	return &Stream[[]T]{
		create: func(ctx context.Context) Iterator[[]T] {
			source := s.create(ctx)
			feedCtx, cancel := context.WithCancel(ctx)

			ch := make(chan result[T], 64)
			done := make(chan struct{})
			go func() {
				defer close(done)
				defer close(ch)
				for {
					val, ok, err := source.Next(feedCtx)
					if err != nil {
						select {
						case ch <- result[T]{err: err}:
						case <-feedCtx.Done():
						}
						return
					}
					if !ok {
						return
					}
					select {
					case ch <- result[T]{val: val, ok: true}:
					case <-feedCtx.Done():
						return
					}
				}
			}()

			return &coalesceIter[T]{
				ch:    ch,
				quiet: quiet,
				closer: func() error {
					cancel()
					<-done
					return source.Close()
				},
			}
		},
	}
}

type coalesceIter[T any] struct {
	ch     <-chan result[T]
	quiet  time.Duration
	closer func() error
	err    error
	eof    bool
}

func (it *coalesceIter[T]) Next(ctx context.Context) ([]T, bool, error) {
	if it.err != nil {
		err := it.err
		it.err = nil
		return nil, false, err
	}
	if it.eof {
		return nil, false, nil
	}

	var batch []T
	select {
	case r, open := <-it.ch:
		if !open {
			it.eof = true
			return nil, false, nil
		}
		if r.err != nil {
			return nil, false, r.err
		}
		batch = append(batch, r.val)
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}

	timer := time.NewTimer(it.quiet)
	defer timer.Stop()
	for {
		select {
		case r, open := <-it.ch:
			if !open {
				it.eof = true
				return batch, true, nil
			}
			if r.err != nil {
				// deliver what was gathered, surface the error next call
				it.err = r.err
				return batch, true, nil
			}
			batch = append(batch, r.val)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(it.quiet)
		case <-timer.C:
			return batch, true, nil
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

func (it *coalesceIter[T]) Close() error { return it.closer() }
