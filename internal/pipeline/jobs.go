package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runJobs calls fn for every job with at most workers calls in flight and
// returns the results in job order once all have finished. fn must not share
// mutable state across jobs; failures belong in R, not in an error, so one
// job can never abort the rest.
func runJobs[J, R any](ctx context.Context, workers int, jobs []J, fn func(context.Context, J) R) []R {
	results := make([]R, len(jobs))
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = fn(ctx, job)
			return nil
		})
	}
	_ = g.Wait() // jobs never return errors
	return results
}

// uniqueBy drops every job whose key was already seen, keeping first
// occurrences in order. Two jobs for the same scan would write the same file.
func uniqueBy[J any, K comparable](jobs []J, key func(J) K) []J {
	seen := make(map[K]bool, len(jobs))
	out := make([]J, 0, len(jobs))
	for _, j := range jobs {
		k := key(j)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, j)
	}
	return out
}
