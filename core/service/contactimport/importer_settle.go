package contactimport

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one settled task.
type Result[T any] struct {
	Value T
	Err   error
}

// SettleAll runs every task with at most limit in flight and waits for all of
// them. Each task's value and error land in its own slot, in task order; a
// failing task never cancels its siblings.
func SettleAll[T any](ctx context.Context, limit int, tasks []func(context.Context) (T, error)) []Result[T] {
	results := make([]Result[T], len(tasks))
	if len(tasks) == 0 {
		return results
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, task := range tasks {
		g.Go(func() error {
			v, err := task(ctx)
			results[i] = Result[T]{Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
