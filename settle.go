package docexport

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/semaphore"
)

// PanicError is a recovered panic from a settled branch.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Settled is the outcome of one branch.
type Settled[T any] struct {
	Value T
	Err   error
}

// SettleAll runs every fn concurrently and waits for all of them. Outcomes
// are returned in the order of fns. A panicking branch settles with a
// *PanicError; no branch can stop its siblings. limit caps concurrency when
// positive. Branches that never acquired a slot before ctx was canceled
// settle with ctx.Err().
func SettleAll[T any](ctx context.Context, limit int, fns []func(context.Context) (T, error)) []Settled[T] {
	out := make([]Settled[T], len(fns))
	var sem *semaphore.Weighted
	if limit > 0 {
		sem = semaphore.NewWeighted(int64(limit))
	}

	var wg sync.WaitGroup
	for i, fn := range fns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					out[i].Err = err
					return
				}
				defer sem.Release(1)
			}
			out[i] = settle(ctx, fn)
		}()
	}
	wg.Wait()
	return out
}

func settle[T any](ctx context.Context, fn func(context.Context) (T, error)) (s Settled[T]) {
	defer func() {
		if r := recover(); r != nil {
			s = Settled[T]{Err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
	}()
	v, err := fn(ctx)
	return Settled[T]{Value: v, Err: err}
}
