package fanout

import (
	"context"
	"fmt"
	"sync"
)

// WorkerFunc processes one partition sequentially and returns its results.
type WorkerFunc[R any] func(ctx context.Context, p Partition) ([]R, error)

// Failure is the outcome of a worker that returned an error or panicked.
type Failure struct {
	Partition Partition
	Err       error
}

// Result merges every worker's output. Items arrive in completion order, not
// partition order.
type Result[R any] struct {
	Items    []R
	Failures []Failure
	Workers  int
}

// Failed reports whether any worker failed.
func (r Result[R]) Failed() bool {
	return len(r.Failures) > 0
}

type collector[R any] struct {
	mu       sync.Mutex
	items    []R
	failures []Failure
}

func (c *collector[R]) add(p Partition, items []R, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, items...)
	if err != nil {
		c.failures = append(c.failures, Failure{Partition: p, Err: err})
	}
}

// Run executes fn over every partition on its own goroutine and blocks until
// all of them return. A failing or panicking worker does not stop its
// siblings; items it returned alongside an error are still merged.
func Run[R any](ctx context.Context, partitions []Partition, fn WorkerFunc[R]) Result[R] {
	var (
		wg  sync.WaitGroup
		acc collector[R]
	)

	for _, p := range partitions {
		wg.Go(func() {
			items, err := invoke(ctx, p, fn)
			acc.add(p, items, err)
		})
	}
	wg.Wait()

	return Result[R]{Items: acc.items, Failures: acc.failures, Workers: len(partitions)}
}

// Ensemble runs size independent members over the same input.
func Ensemble[R any](ctx context.Context, size int, fn func(ctx context.Context, member int) (R, error)) Result[R] {
	members := make([]Partition, 0, max(size, 0))
	for i := range size {
		members = append(members, Partition{Index: i, Start: i, End: i + 1})
	}

	return Run(ctx, members, func(ctx context.Context, p Partition) ([]R, error) {
		v, err := fn(ctx, p.Index)
		if err != nil {
			return nil, err
		}
		return []R{v}, nil
	})
}

func invoke[R any](ctx context.Context, p Partition, fn WorkerFunc[R]) (items []R, err error) {
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = fmt.Errorf("worker %s panicked: %v", p, r)
		}
	}()
	return fn(ctx, p)
}
