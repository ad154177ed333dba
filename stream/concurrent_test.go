package stream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestBuffer_PreservesOrder(t *testing.T) {
	got, err := Collect(context.Background(), Buffer(FromSlice([]int{1, 2, 3, 4}), 2))
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{1, 2, 3, 4}) {
		t.Errorf("got %v", got)
	}
}

func TestBuffer_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	s := Map(FromSlice([]int{1}), func(context.Context, int) (int, error) { return 0, boom })
	_, err := Collect(context.Background(), Buffer(s, 4))
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestOrderedParallel_KeepsInputOrder(t *testing.T) {
	in := []int{5, 1, 4, 2, 3}
	s := OrderedParallel(FromSlice(in), 3, func(_ context.Context, n int) (int, error) {
		// later items finish first
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10, nil
	})
	got, err := Collect(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{50, 10, 40, 20, 30}) {
		t.Errorf("got %v", got)
	}
}

func TestOrderedParallel_BoundsConcurrency(t *testing.T) {
	var active, peak int32
	s := OrderedParallel(FromSlice(make([]int, 20)), 4, func(_ context.Context, n int) (int, error) {
		cur := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return n, nil
	})
	if _, err := Collect(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	if p := atomic.LoadInt32(&peak); p > 4 {
		t.Errorf("expected at most 4 concurrent calls, saw %d", p)
	}
}

func TestOrderedParallel_Error(t *testing.T) {
	boom := errors.New("boom")
	s := OrderedParallel(FromSlice([]int{1, 2, 3}), 2, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})
	got, err := Collect(context.Background(), s)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if !intSliceEqual(got, []int{1}) {
		t.Errorf("expected values before the failing one, got %v", got)
	}
}

func TestOrderedParallel_SingleWorkerIsMap(t *testing.T) {
	s := OrderedParallel(FromSlice([]int{1, 2}), 1, func(_ context.Context, n int) (int, error) {
		return n + 1, nil
	})
	got, _ := Collect(context.Background(), s)
	if !intSliceEqual(got, []int{2, 3}) {
		t.Errorf("got %v", got)
	}
}
