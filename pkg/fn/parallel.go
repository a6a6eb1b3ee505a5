package fn

import (
	"context"
	"sync"
)

// ParMap applies f to every item on at most workers goroutines and returns
// the outputs in input order. workers <= 0 means one goroutine per item.
func ParMap[T, U any](items []T, workers int, f func(T) U) []U {
	out := make([]U, len(items))
	if len(items) == 0 {
		return out
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	next := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range next {
				out[i] = f(items[i])
			}
		}()
	}
	for i := range items {
		next <- i
	}
	close(next)
	wg.Wait()
	return out
}

// ParTry is ParMap for work that can fail. The first error cancels the
// context seen by the calls still pending and is returned once all workers
// have stopped. A cancelled parent returns its error.
func ParTry[T, U any](ctx context.Context, items []T, workers int, f func(context.Context, T) (U, error)) ([]U, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once  sync.Once
		first error
	)
	out := ParMap(items, workers, func(v T) U {
		var zero U
		if ctx.Err() != nil {
			return zero
		}
		u, err := f(ctx, v)
		if err != nil {
			once.Do(func() {
				first = err
				cancel()
			})
			return zero
		}
		return u
	})
	if first != nil {
		return nil, first
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
