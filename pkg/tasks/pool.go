// Package tasks provides the bounded in-process pool for post-ack work.
// Broadcasts, usage accumulation, AI analysis and workflow execution run
// here so webhook handlers can acknowledge the vendor immediately.
package tasks

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

type job struct {
	name string
	run  func(context.Context)
}

// Pool is a fixed-size worker pool over a bounded queue. Submit never
// blocks: when the queue is full the task is dropped and logged rather than
// stalling the caller. Every task is panic-isolated.
type Pool struct {
	workers int
	jobs    chan job

	baseCtx context.Context
	wg      sync.WaitGroup

	// mu guards the stopped flag against a Submit racing the channel close.
	mu      sync.RWMutex
	stopped bool

	started atomic.Bool
	dropped atomic.Int64
}

// NewPool creates a pool with the given worker count and queue capacity.
func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{workers: workers, jobs: make(chan job, queueSize)}
}

// Start spawns the worker goroutines. Tasks receive ctx as their base
// context; the caller keeps it alive until Stop returns so draining tasks
// can finish their writes.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		slog.Warn("Task pool already started, ignoring duplicate Start call")
		return
	}
	p.baseCtx = ctx

	slog.Info("Starting task pool", "workers", p.workers, "queue_capacity", cap(p.jobs))
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				p.runOne(j)
			}
		}()
	}
}

// Submit enqueues a task. Returns false when the pool is stopped or the
// queue is full; the task is dropped with a warning either way.
func (p *Pool) Submit(name string, run func(context.Context)) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		p.dropped.Add(1)
		slog.Warn("Task dropped, pool stopped", "task", name)
		return false
	}

	select {
	case p.jobs <- job{name: name, run: run}:
		return true
	default:
		p.dropped.Add(1)
		slog.Warn("Task dropped, queue full", "task", name, "queue_depth", len(p.jobs))
		return false
	}
}

// Stop closes the queue and waits for queued tasks to drain. When ctx
// expires first, remaining tasks are abandoned with a warning.
func (p *Pool) Stop(ctx context.Context) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Task pool drained")
	case <-ctx.Done():
		slog.Warn("Task pool drain timed out", "remaining", len(p.jobs))
	}
}

func (p *Pool) runOne(j job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Task panicked", "task", j.name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	j.run(p.baseCtx)
}

// Stats is a point-in-time view of the pool for the health endpoint.
type Stats struct {
	Workers       int   `json:"workers"`
	QueueDepth    int   `json:"queue_depth"`
	QueueCapacity int   `json:"queue_capacity"`
	Dropped       int64 `json:"dropped"`
}

func (p *Pool) Stats() Stats {
	return Stats{
		Workers:       p.workers,
		QueueDepth:    len(p.jobs),
		QueueCapacity: cap(p.jobs),
		Dropped:       p.dropped.Load(),
	}
}
