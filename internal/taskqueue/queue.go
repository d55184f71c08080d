package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"laundry-reservation-backend/internal/clock"
)

// maxBackoff caps the delay between delivery attempts.
const maxBackoff = 10 * time.Minute

// ErrNotStarted is returned by Schedule before Start has been called.
var ErrNotStarted = errors.New("queue is not started")

// Task is a request to invoke Target with Payload at or after FireAt.
type Task struct {
	Target  string
	Payload []byte
	FireAt  time.Time

	attempt int
}

// Scheduler accepts deferred-execution requests.
type Scheduler interface {
	Schedule(ctx context.Context, task Task) error
}

// Options configures a Queue.
type Options struct {
	Workers      int
	MaxAttempts  int
	RetryBackoff time.Duration
	RatePerSec   float64
	Clock        clock.Clock
	Deliverer    Deliverer
}

// Queue is an in-process deferred-execution service. Each task arms a
// timer; due tasks are handed to a pool of workers that deliver them.
// Failed deliveries are retried with exponential backoff, so a task may be
// delivered more than once. Tasks live only in memory.
type Queue struct {
	size        int
	jobs        chan Task
	clock       clock.Clock
	deliverer   Deliverer
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration

	mu      sync.Mutex
	done    <-chan struct{}
	stopped bool
}

// NewQueue creates a new Queue. Start must be called before tasks are
// delivered.
func NewQueue(opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	return &Queue{
		size:        opts.Workers,
		jobs:        make(chan Task, 64*opts.Workers),
		clock:       opts.Clock,
		deliverer:   opts.Deliverer,
		limiter:     rate.NewLimiter(limit, opts.Workers),
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.RetryBackoff,
	}
}

// Start launches the worker goroutines. They exit when ctx is done.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	q.done = ctx.Done()
	q.mu.Unlock()

	for i := 0; i < q.size; i++ {
		go q.worker(ctx, i)
	}

	go func() {
		<-ctx.Done()
		q.mu.Lock()
		q.stopped = true
		q.mu.Unlock()
	}()
}

// Schedule arms task to be delivered at task.FireAt. A fire time in the
// past is delivered as soon as a worker is free. Start must be called first.
func (q *Queue) Schedule(ctx context.Context, task Task) error {
	if task.Target == "" {
		return errors.New("task target is required")
	}
	q.mu.Lock()
	started, stopped := q.done != nil, q.stopped
	q.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	if stopped {
		return fmt.Errorf("queue is stopped")
	}

	task.attempt = 0
	q.arm(task, task.FireAt.Sub(q.clock.Now()))
	return nil
}

func (q *Queue) arm(task Task, delay time.Duration) {
	q.clock.AfterFunc(delay, func() { q.enqueue(task) })
}

func (q *Queue) enqueue(task Task) {
	q.mu.Lock()
	done, stopped := q.done, q.stopped
	q.mu.Unlock()
	if stopped {
		log.Printf("Queue stopped, dropping task for %s due at %s", task.Target, task.FireAt.Format(time.RFC3339))
		return
	}

	select {
	case q.jobs <- task:
	case <-done:
	}
}

// worker is the actual worker goroutine.
func (q *Queue) worker(ctx context.Context, id int) {
	log.Printf("Task worker %d started", id)
	for {
		select {
		case task := <-q.jobs:
			q.process(ctx, task)
		case <-ctx.Done():
			log.Printf("Task worker %d shutting down", id)
			return
		}
	}
}

func (q *Queue) process(ctx context.Context, task Task) {
	if err := q.limiter.Wait(ctx); err != nil {
		return
	}

	err := q.deliverer.Deliver(ctx, task)
	if err == nil {
		return
	}

	task.attempt++
	if errors.Is(err, ErrPermanent) || task.attempt >= q.maxAttempts {
		log.Printf("Giving up on task for %s after %d attempts: %v", task.Target, task.attempt, err)
		return
	}

	delay := q.backoff << (task.attempt - 1)
	if delay > maxBackoff || delay <= 0 {
		delay = maxBackoff
	}
	log.Printf("Task delivery to %s failed (attempt %d/%d), retrying in %s: %v", task.Target, task.attempt, q.maxAttempts, delay, err)
	q.arm(task, delay)
}
