package redissync

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// WorkQueue bounds the fan-out across a set of tasks to Concurrency goroutines in flight, using
// golang.org/x/sync/errgroup + golang.org/x/sync/semaphore the way database bulk-exec code bounds
// concurrent database work. It exists so the Dumper can nest an inner queue over chunks of objects
// inside an outer queue over object types without hand-rolling a second worker-pool.
type WorkQueue struct {
	Concurrency int64

	group *errgroup.Group
	ctx   context.Context
	sem   *semaphore.Weighted
}

// NewWorkQueue returns a WorkQueue bound to ctx (any task failure cancels ctx, mirroring
// errgroup.WithContext) with up to concurrency tasks running at once.
func NewWorkQueue(ctx context.Context, concurrency int) (*WorkQueue, context.Context) {
	if concurrency < 1 {
		concurrency = 1
	}

	group, groupCtx := errgroup.WithContext(ctx)

	return &WorkQueue{
		Concurrency: int64(concurrency),
		group:       group,
		ctx:         groupCtx,
		sem:         semaphore.NewWeighted(int64(concurrency)),
	}, groupCtx
}

// Enqueue blocks until a concurrency slot is free (or the queue's context is canceled), then runs
// task in a new goroutine.
func (q *WorkQueue) Enqueue(task func(ctx context.Context) error) error {
	if err := q.sem.Acquire(q.ctx, 1); err != nil {
		return err
	}

	q.group.Go(func() error {
		defer q.sem.Release(1)

		return task(q.ctx)
	})

	return nil
}

// ParallelFor runs body(item) for every item in items with up to q.Concurrency in flight,
// returning once all have completed (or the first error cancels the remainder).
func ParallelFor[T any](ctx context.Context, concurrency int, items []T, body func(ctx context.Context, item T) error) error {
	q, _ := NewWorkQueue(ctx, concurrency)

	for _, item := range items {
		item := item

		if err := q.Enqueue(func(ctx context.Context) error {
			return body(ctx, item)
		}); err != nil {
			break
		}
	}

	return q.Join()
}

// Join waits for every enqueued task to complete and returns the first error raised, if any.
func (q *WorkQueue) Join() error {
	return q.group.Wait()
}
