package fanout

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultPoolSize bounds backend concurrency across the whole process.
const DefaultPoolSize = 15

// Pool caps the number of backend operations in flight process-wide.
// Executors from concurrent HTTP requests all draw from the same pool.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool admitting at most size concurrent workers.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

func (p *Pool) acquire(ctx context.Context) error { return p.sem.Acquire(ctx, 1) }
func (p *Pool) release()                          { p.sem.Release(1) }
