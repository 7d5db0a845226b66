package worker

import (
	"context"
	"sync"
)

// Pool bounds the number of tasks running at once. Batch file processing
// submits one task per pending file; the semaphore keeps concurrent
// compressions at the configured limit.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewPool creates a pool allowing up to maxWorkers concurrent tasks.
func NewPool(maxWorkers int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{sem: make(chan struct{}, maxWorkers)}
}

// Submit schedules task on a new goroutine once a worker slot is free. If ctx
// is cancelled before a slot opens, the task is dropped.
func (p *Pool) Submit(ctx context.Context, task func(context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
			task(ctx)
		case <-ctx.Done():
		}
	}()
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}
