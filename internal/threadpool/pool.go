// Package threadpool provides the fixed-size worker dispatch the
// transposition table uses for parallel zero-initialization. The outer
// search driver that would normally own and reuse this pool for search
// work is out of scope; here it exists solely as a concrete
// implementation of the "ThreadPool" external collaborator so
// internal/tt's parallel Resize/Clear has something real to dispatch
// onto instead of a stub.
package threadpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool dispatches a fixed number of slices of work across goroutines and
// waits for all of them to finish.
type Pool struct {
	threads int
}

// New creates a pool with the given number of worker threads. threads is
// clamped to at least 1.
func New(threads int) *Pool {
	if threads < 1 {
		threads = 1
	}
	return &Pool{threads: threads}
}

// Threads returns the number of worker threads this pool dispatches onto.
func (p *Pool) Threads() int {
	return p.threads
}

// ParallelFor partitions [0, n) into at most p.Threads() contiguous chunks and
// calls fn(start, end) for each chunk concurrently, blocking until every
// chunk has completed. Matches the "partition clusters evenly across
// threads, each thread zeroes its slice, join all before returning"
// contract internal/tt.Clear needs.
func (p *Pool) ParallelFor(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	threads := p.threads
	if threads > n {
		threads = n
	}

	g, _ := errgroup.WithContext(context.Background())
	chunk := (n + threads - 1) / threads

	for t := 0; t < threads; t++ {
		start := t * chunk
		end := start + chunk
		if start >= n {
			break
		}
		if end > n {
			end = n
		}
		g.Go(func() error {
			fn(start, end)
			return nil
		})
	}

	// errgroup.Group.Wait never returns a non-nil error here since fn
	// cannot fail; the error return exists only to satisfy errgroup's
	// Go signature.
	_ = g.Wait()
}
