// Package worker runs independent checks concurrently.
package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool runs jobs on a fixed number of goroutines. Results are drained as
// they arrive, so Submit never blocks on an unread result.
type Pool struct {
	workers  int
	jobQueue chan Job
	results  chan Result
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	started   bool
	collected []Result
	drained   chan struct{}

	closeJobs sync.Once
	waitOnce  sync.Once
}

// NewPool creates a pool bound to ctx. Cancelling ctx stops the workers
// after their current job.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:  workers,
		jobQueue: make(chan Job, workers),
		results:  make(chan Result, workers),
		ctx:      ctx,
		cancel:   cancel,
		drained:  make(chan struct{}),
	}
}

// Start launches the workers and the result collector
func (p *Pool) Start() {
	p.started = true
	go func() {
		defer close(p.drained)
		for r := range p.results {
			p.collected = append(p.collected, r)
		}
	}()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.results <- job.Execute(p.ctx)
		}
	}
}

// Submit queues a job. It reports false if the pool was cancelled first.
func (p *Pool) Submit(job Job) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- job:
		return true
	}
}

// Wait stops accepting jobs, waits for the workers and returns every result
// produced. Jobs still queued when the pool is cancelled produce none.
func (p *Pool) Wait() []Result {
	p.waitOnce.Do(func() {
		p.closeJobs.Do(func() { close(p.jobQueue) })
		p.wg.Wait()
		close(p.results)
		if p.started {
			<-p.drained
		}
		p.cancel()
	})
	return p.collected
}

// Shutdown cancels outstanding work and waits for the workers to exit
func (p *Pool) Shutdown() []Result {
	p.cancel()
	return p.Wait()
}
