package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrPoolStopped = errors.New("worker pool stopped")

type ProcessFunc[J any] func(ctx context.Context, job J) error

// Pool runs jobs on a fixed number of workers fed by a bounded queue.
type Pool[J any] struct {
	name       string
	numWorkers int
	jobs       chan J
	processor  ProcessFunc[J]
	wg         sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewPool[J any](name string, numWorkers, bufferSize int, processor ProcessFunc[J]) *Pool[J] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool[J]{
		name:       name,
		numWorkers: numWorkers,
		jobs:       make(chan J, bufferSize),
		processor:  processor,
	}
}

func (p *Pool[J]) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool[J]) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := p.processor(ctx, job); err != nil {
				slog.Error("job failed", "pool", p.name, "worker", id, "error", err)
			}
		}
	}
}

// Submit blocks until the job is queued or ctx is done.
func (p *Pool[J]) Submit(ctx context.Context, job J) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit queues the job only if there is room and reports whether it did.
func (p *Pool[J]) TrySubmit(job J) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}

	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits for workers to drain it. Safe to call
// more than once.
func (p *Pool[J]) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.jobs)
	}
	p.mu.Unlock()

	p.wg.Wait()
}
