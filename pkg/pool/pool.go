// Package pool implements a fixed-size worker pool fed by an unbounded FIFO
// queue.
//
// Workers are started by New and live until Shutdown. Every task receives
// the 0-based identity of the worker that runs it. Shutdown stops accepting
// new tasks, lets the workers drain whatever is still queued, and blocks
// until all of them have exited.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nemanja-m/workpool/internal/shared/logging"
)

var (
	// ErrPoolStopped is returned by Submit once Shutdown has begun.
	ErrPoolStopped = errors.New("pool: operation on stopped pool")

	// ErrNoWorkers is returned by New for a non-positive worker count.
	ErrNoWorkers = errors.New("pool: worker count must be positive")

	// ErrNilTask is returned by Submit for a nil task.
	ErrNilTask = errors.New("pool: nil task")
)

// Task is a unit of work. It is invoked exactly once with the identity of
// the worker executing it, in the range [0, Workers()).
type Task func(workerID int)

// Pool runs tasks on a fixed set of workers fed by an unbounded FIFO queue.
type Pool struct {
	name    string
	workers int
	logger  logging.Logger
	onPanic PanicHandler
	metrics *Metrics

	mu      sync.Mutex
	cond    *sync.Cond
	queue   taskQueue
	stopped bool

	// pending mirrors queue.Len() so it can be read without the lock.
	pending atomic.Int64

	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

// New starts a pool with the given number of workers. The workers block
// until tasks are submitted.
func New(workers int, opts ...Option) (*Pool, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNoWorkers, workers)
	}

	p := &Pool{
		name:    "default",
		workers: workers,
		logger:  logging.NewNopLogger(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cond = sync.NewCond(&p.mu)
	p.logger = p.logger.With("pool", p.name)

	for id := range workers {
		p.wg.Go(func() {
			p.worker(id)
		})
	}

	p.logger.Debug("Worker pool started", "workers", workers)
	return p, nil
}

// Submit appends task to the queue and wakes one idle worker. It returns
// ErrPoolStopped, without enqueueing, if Shutdown has been called.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.metrics.taskRejected(p.name)
		return ErrPoolStopped
	}
	p.queue.Push(task)
	p.pending.Add(1)
	p.metrics.taskSubmitted(p.name, p.queue.Len())
	p.mu.Unlock()

	p.cond.Signal()
	return nil
}

// Pending returns the number of queued tasks no worker has picked up yet.
// The value is a snapshot and may be stale by the time it is used.
func (p *Pool) Pending() int {
	return int(p.pending.Load())
}

// Workers returns the number of workers started by New.
func (p *Pool) Workers() int {
	return p.workers
}

// Stopped reports whether Shutdown has been called.
func (p *Pool) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// Done is closed once every worker has exited after Shutdown.
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

// Shutdown stops accepting tasks, runs everything still queued and waits
// for all workers to exit. It is safe to call more than once; every call
// returns after the pool has fully stopped.
//
// Shutdown must not be called from inside a task: the calling worker would
// wait for itself.
func (p *Pool) Shutdown() {
	_ = p.ShutdownContext(context.Background())
}

// ShutdownContext is like Shutdown but gives up waiting when ctx is done.
// Workers keep draining the queue in the background in that case; a later
// call waits again. Once the pool has stopped it returns nil, even for a ctx
// that is already done.
func (p *Pool) ShutdownContext(ctx context.Context) error {
	p.stopOnce.Do(p.stop)

	// A stopped pool wins over an expired ctx.
	select {
	case <-p.done:
		return nil
	default:
	}

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pool: shutdown interrupted with %d tasks pending: %w", p.Pending(), ctx.Err())
	}
}

func (p *Pool) stop() {
	p.mu.Lock()
	p.stopped = true
	queued := p.queue.Len()
	p.mu.Unlock()

	// Every worker has to observe the flag, not just one.
	p.cond.Broadcast()
	p.logger.Debug("Worker pool draining", "pending", queued)

	go func() {
		p.wg.Wait()
		close(p.done)
		p.logger.Debug("Worker pool stopped")
	}()
}

func (p *Pool) worker(id int) {
	logger := p.logger.With("worker_id", id)
	logger.Debug("Worker started")

	for {
		task, ok := p.next()
		if !ok {
			logger.Debug("Worker exited")
			return
		}
		p.run(id, task, logger)
	}
}

// next blocks until a task is available or the pool is stopped and empty.
func (p *Pool) next() (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for !p.stopped && p.queue.Len() == 0 {
		p.cond.Wait()
	}
	if p.queue.Len() == 0 {
		return nil, false
	}

	task := p.queue.Pop()
	p.pending.Add(-1)
	p.metrics.setQueueDepth(p.name, p.queue.Len())
	return task, true
}

// run invokes task outside the pool lock. Without a panic handler a
// panicking task takes the process down.
func (p *Pool) run(id int, task Task, logger logging.Logger) {
	p.metrics.taskStarted(p.name)
	start := time.Now()

	defer func() {
		p.metrics.taskFinished(p.name, time.Since(start))
		if p.onPanic == nil {
			return
		}
		if r := recover(); r != nil {
			p.metrics.taskPanicked(p.name)
			logger.Error("Task panicked", "panic", r, "stack", string(debug.Stack()))
			p.onPanic(id, r)
		}
	}()

	task(id)
	p.metrics.taskCompleted(p.name)
}
