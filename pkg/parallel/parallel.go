// Package parallel runs index-range work across a bounded set of goroutines.
package parallel

import (
	"golang.org/x/sync/errgroup"
)

// For splits [0, n) into at most workers contiguous chunks and calls fn once
// per chunk, concurrently. Chunks never overlap, so fn may write to the
// entries of its own range without locking.
//
// When several chunks fail, the error of the lowest chunk is returned so the
// result does not depend on scheduling.
func For(n, workers int, fn func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	if workers == 1 {
		return fn(0, n)
	}

	size := (n + workers - 1) / workers
	chunks := (n + size - 1) / size
	errs := make([]error, chunks)

	var g errgroup.Group
	for k := 0; k < chunks; k++ {
		lo := k * size
		hi := min(lo+size, n)
		g.Go(func() error {
			errs[k] = fn(lo, hi)
			return errs[k]
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
