// AngelaMos | 2026
// pool.go

package queue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

type task func(ctx context.Context)

// Pool is a fixed set of goroutines draining a bounded channel. Panics in
// a task are recovered and counted so one bad job cannot take a worker down.
type Pool struct {
	logger  *slog.Logger
	workers int
	tasks   chan task

	wg     sync.WaitGroup
	closed atomic.Bool

	stats poolStats
}

type poolStats struct {
	submitted atomic.Int64
	completed atomic.Int64
	panics    atomic.Int64
}

type PoolStats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Panics    int64 `json:"panics"`
	Pending   int   `json:"pending"`
}

func NewPool(logger *slog.Logger, workers, capacity int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = workers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		logger:  logger,
		workers: workers,
		tasks:   make(chan task, capacity),
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for t := range p.tasks {
		p.execute(ctx, t, id)
	}
	p.logger.Debug("pool worker stopped", "worker_id", id)
}

func (p *Pool) execute(ctx context.Context, t task, workerID int) {
	defer func() {
		p.stats.completed.Add(1)
		if r := recover(); r != nil {
			p.stats.panics.Add(1)
			p.logger.Error("task panic recovered",
				"worker_id", workerID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	t(ctx)
}

// Submit blocks until a worker slot frees up or ctx ends.
func (p *Pool) Submit(ctx context.Context, t task) error {
	if p.closed.Load() {
		return fmt.Errorf("pool is closed")
	}

	select {
	case p.tasks <- t:
		p.stats.submitted.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks and waits for in-flight ones.
func (p *Pool) Shutdown(timeout time.Duration) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(p.tasks)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool drained")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("pool shutdown timeout after %s", timeout)
	}
}

func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Submitted: p.stats.submitted.Load(),
		Completed: p.stats.completed.Load(),
		Panics:    p.stats.panics.Load(),
		Pending:   len(p.tasks),
	}
}
