// Package tasks provides a bounded background work dispatcher so that
// fire-and-forget jobs remain observable and subject to backpressure.
package tasks

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fundsight/tally/pkg/lifecycle"
)

// Task is a unit of background work. Key identifies the logical subject of
// the work; at most one task per key is queued or running at a time.
type Task struct {
	Key string
	Run func(ctx context.Context) error
}

// Dispatcher runs submitted tasks on a fixed pool of workers reading from a
// bounded queue. Submissions beyond the queue capacity are rejected rather
// than spawning unbounded goroutines.
type Dispatcher struct {
	queue   chan Task
	workers int
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
}

// New creates a Dispatcher with the given worker count and queue capacity.
// Values below 1 are raised to 1.
func New(workers, capacity int, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Dispatcher{
		queue:   make(chan Task, capacity),
		workers: workers,
		logger:  logger.With("system", "tasks"),
		pending: make(map[string]struct{}),
	}
}

// Start launches the worker pool. Workers drain the queue until the
// lifecycle context is cancelled; shutdown waits for in-flight tasks.
func (d *Dispatcher) Start(lc *lifecycle.Coordinator) error {
	d.logger.Info("starting task dispatcher", "workers", d.workers, "capacity", cap(d.queue))

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(lc.Context())
		}()
	}

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		wg.Wait()
		d.logger.Info("task dispatcher stopped")
	})

	return nil
}

// Submit enqueues a task for background execution. Returns false when the
// queue is full or a task with the same key is already queued or running.
func (d *Dispatcher) Submit(t Task) bool {
	if t.Run == nil {
		return false
	}

	d.mu.Lock()
	if _, dup := d.pending[t.Key]; dup {
		d.mu.Unlock()
		d.logger.Warn("task already pending", "key", t.Key)
		return false
	}
	d.pending[t.Key] = struct{}{}
	d.mu.Unlock()

	select {
	case d.queue <- t:
		return true
	default:
		d.release(t.Key)
		d.logger.Warn("task queue full, rejecting", "key", t.Key)
		return false
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-d.queue:
			if err := t.Run(ctx); err != nil {
				d.logger.Error("task failed", "key", t.Key, "error", err)
			}
			d.release(t.Key)
		}
	}
}

func (d *Dispatcher) release(key string) {
	d.mu.Lock()
	delete(d.pending, key)
	d.mu.Unlock()
}
