// Package async runs indexed work on a bounded set of goroutines.
package async

import (
	"context"
	"sync"
)

// Run calls fn for every index in [0, n) on at most workers goroutines.
// fn owns slot i of whatever result slice the caller pre-sized. Indices not
// yet started when ctx ends are passed to skip instead.
func Run(ctx context.Context, n, workers int, fn func(ctx context.Context, i int), skip func(i int, err error)) {
	if workers > n {
		workers = n
	}

	if workers <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				skip(i, err)
				continue
			}
			fn(ctx, i)
		}
		return
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					skip(i, err)
					continue
				}
				fn(ctx, i)
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

// ForEach applies fn to every item and returns the per-item errors in input
// order. Items skipped by cancellation carry the context error.
func ForEach[T any](ctx context.Context, items []T, workers int, fn func(ctx context.Context, item T) error) []error {
	errs := make([]error, len(items))
	Run(ctx, len(items), workers,
		func(ctx context.Context, i int) { errs[i] = fn(ctx, items[i]) },
		func(i int, err error) { errs[i] = err },
	)
	return errs
}

// Failed counts the non-nil errors.
func Failed(errs []error) int {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}
	return n
}
