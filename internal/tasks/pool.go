package tasks

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonathan/hiretrack/internal/metrics"
)

// Handler processes one task.
type Handler func(ctx context.Context, task Task) error

// Pool runs a fixed number of workers that consume a Queue.
type Pool struct {
	queue    Queue
	workers  int
	handlers map[string]Handler

	mu      sync.Mutex
	started bool
	stop    context.CancelFunc // stops dequeuing
	abort   context.CancelFunc // cancels running handlers
	wg      sync.WaitGroup
}

// NewPool returns a pool of workers (at least one).
func NewPool(queue Queue, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{queue: queue, workers: workers, handlers: make(map[string]Handler)}
}

// Handle registers the handler for kind. Call before Start.
func (p *Pool) Handle(kind string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[kind] = h
}

// Enqueue adds a task to the pool's queue.
func (p *Pool) Enqueue(ctx context.Context, task Task) error {
	if err := p.queue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue %s task: %w", task.Kind, err)
	}
	p.recordDepth(ctx)
	return nil
}

// Start launches the workers. Handlers run with a context derived from ctx.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	runCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	dequeueCtx, stop := context.WithCancel(ctx)
	p.abort, p.stop = abort, stop

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(dequeueCtx, runCtx, i)
	}
	log.Printf("[tasks] started %d workers", p.workers)
}

// Shutdown stops blocking on the queue, runs the tasks still waiting in it and
// waits for running ones. When ctx ends first, running handlers are cancelled
// and an error is returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	stop, abort := p.stop, p.abort
	p.mu.Unlock()

	stop()
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		abort()
		return nil
	case <-ctx.Done():
		abort()
		if n, err := p.queue.Len(context.Background()); err == nil && n > 0 {
			log.Printf("[tasks] %d tasks left in queue", n)
		}
		return fmt.Errorf("task pool shutdown timed out: %w", ctx.Err())
	}
}

func (p *Pool) work(dequeueCtx, runCtx context.Context, id int) {
	defer p.wg.Done()
	for {
		task, err := p.queue.Dequeue(dequeueCtx)
		if err != nil {
			if dequeueCtx.Err() != nil {
				p.drain(runCtx)
				return
			}
			log.Printf("[tasks] worker %d: dequeue failed: %v", id, err)
			select {
			case <-dequeueCtx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		p.recordDepth(runCtx)
		p.run(runCtx, task)
	}
}

// drainPoll bounds each Dequeue while draining, since another worker may take
// the task Len reported.
const drainPoll = 100 * time.Millisecond

// drain runs queued tasks until the queue is empty or runCtx is aborted.
func (p *Pool) drain(runCtx context.Context) {
	for runCtx.Err() == nil {
		n, err := p.queue.Len(runCtx)
		if err != nil || n == 0 {
			return
		}
		pollCtx, cancel := context.WithTimeout(runCtx, drainPoll)
		task, err := p.queue.Dequeue(pollCtx)
		cancel()
		if err != nil {
			continue
		}
		p.recordDepth(runCtx)
		p.run(runCtx, task)
	}
}

func (p *Pool) run(ctx context.Context, task Task) {
	p.mu.Lock()
	h, ok := p.handlers[task.Kind]
	p.mu.Unlock()
	if !ok {
		log.Printf("[tasks] no handler for task kind %q (task %s)", task.Kind, task.ID)
		metrics.Tasks.WithLabelValues(task.Kind, metrics.OutcomeSkipped).Inc()
		return
	}

	start := time.Now()
	err := safeCall(ctx, task, h)
	if err != nil {
		log.Printf("[tasks] %s task %s for candidate %s failed after %v: %v", task.Kind, task.ID, task.CandidateID, time.Since(start).Round(time.Millisecond), err)
		metrics.Tasks.WithLabelValues(task.Kind, metrics.OutcomeFailure).Inc()
		return
	}
	metrics.Tasks.WithLabelValues(task.Kind, metrics.OutcomeSuccess).Inc()
}

func (p *Pool) recordDepth(ctx context.Context) {
	if n, err := p.queue.Len(ctx); err == nil {
		metrics.QueueDepth.Set(float64(n))
	}
}

func safeCall(ctx context.Context, task Task, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, task)
}
