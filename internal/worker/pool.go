// Package worker provides a bounded pool that limits concurrent outbound
// provider calls so a burst of requests cannot open unbounded upstream
// connections.
package worker

import (
	"context"
	"fmt"
)

// Job is a unit of work executed on a pool slot.
type Job func(ctx context.Context) error

// Pool is a counting-semaphore worker pool. Submit blocks until a slot is
// free or the caller's context is done.
type Pool struct {
	slots chan struct{}
}

// New creates a pool with the given number of slots. Sizes below one are
// coerced to one so the pool always makes progress.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}

	return &Pool{
		slots: make(chan struct{}, size),
	}
}

// Submit runs the job on an available slot and returns its error. The
// caller's context bounds both the wait for a slot and the job itself.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("failed to acquire worker slot: %w", ctx.Err())
	}

	defer func() { <-p.slots }()

	return job(ctx)
}

// Size returns the pool's slot count.
func (p *Pool) Size() int {
	return cap(p.slots)
}
