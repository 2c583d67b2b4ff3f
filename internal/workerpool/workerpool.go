// Package workerpool provides a generic fan-out pool for independent jobs.
package workerpool

import (
	"runtime"
	"sync"
)

// MaxWorkers is the default worker count.
var MaxWorkers = runtime.NumCPU()

// WorkerPool provides a reusable worker pool pattern for parallel processing.
// It manages job distribution across multiple workers and collects results.
type WorkerPool[Job any, Result any] struct {
	numWorkers int
	jobs       chan Job
	results    chan Result
	wg         sync.WaitGroup
}

// New creates a new worker pool with the specified number of workers.
// If numWorkers is 0 or negative, it defaults to MaxWorkers.
// If numJobs is less than numWorkers, the pool is sized to match numJobs.
func New[Job any, Result any](numWorkers, numJobs int) *WorkerPool[Job, Result] {
	if numWorkers <= 0 {
		numWorkers = MaxWorkers
	}
	if numJobs > 0 {
		numWorkers = min(numWorkers, numJobs)
	}

	return &WorkerPool[Job, Result]{
		numWorkers: numWorkers,
		jobs:       make(chan Job, numJobs),
		results:    make(chan Result, numJobs),
	}
}

// Workers returns the number of workers the pool will start.
func (p *WorkerPool[Job, Result]) Workers() int {
	return p.numWorkers
}

// Start begins the worker pool with the provided worker function.
// The workerFn is called for each job and should return a result.
func (p *WorkerPool[Job, Result]) Start(workerFn func(Job) Result) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.results <- workerFn(job)
			}
		}()
	}
}

// Submit adds a job to the worker pool's job queue.
func (p *WorkerPool[Job, Result]) Submit(job Job) {
	p.jobs <- job
}

// Close closes the job channel. The results channel is closed once every
// worker has finished.
func (p *WorkerPool[Job, Result]) Close() {
	close(p.jobs)
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
}

// Results returns the results channel for collecting worker outputs.
func (p *WorkerPool[Job, Result]) Results() <-chan Result {
	return p.results
}
