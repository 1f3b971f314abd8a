// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package concurrent bounds the number of goroutines used for fan-out work.
package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerPool limits how many jobs run at the same time.
type WorkerPool struct {
	workerCount int
}

// NewWorkerPool returns a pool running at most workerCount jobs. Counts
// below one are raised to one.
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &WorkerPool{
		workerCount: workerCount,
	}
}

// RunAll executes every function regardless of failures and returns only the
// non-nil errors.
func (wp *WorkerPool) RunAll(ctx context.Context, functions ...func() error) []error {
	if len(functions) == 0 {
		return nil
	}

	_, errs := Map(ctx, wp, functions, func(_ context.Context, fn func() error) (struct{}, error) {
		return struct{}{}, fn()
	})

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	return failed
}

// Map calls fn for every item with at most the pool's worker count in flight.
// results[i] and errs[i] belong to items[i]. Items not yet started when ctx is
// cancelled get ctx.Err() and fn is not called for them.
func Map[T, R any](ctx context.Context, wp *WorkerPool, items []T, fn func(context.Context, T) (R, error)) ([]R, []error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))

	// Failures are recorded per item; the group never cancels.
	g := new(errgroup.Group)
	g.SetLimit(wp.workerCount)

	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = fn(ctx, item)
			return nil
		})
	}

	_ = g.Wait()
	return results, errs
}
