// Package mainqueue serializes work onto a single owning goroutine.
//
// Producers on any goroutine enqueue tasks with Async; the owner executes
// them in FIFO order from Run or Drain. Enqueueing never blocks, so a
// producer such as a native MIDI callback thread cannot stall on the owner.
package mainqueue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when work is submitted to a closed queue.
var ErrClosed = errors.New("main queue closed")

// Queue is an unbounded single-consumer task queue.
type Queue struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Async appends task to the queue. It reports false if the queue is closed.
func (q *Queue) Async(task func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Sync enqueues task and waits until the owner has run it.
// It must not be called from the owning goroutine.
func (q *Queue) Sync(ctx context.Context, task func()) error {
	finished := make(chan struct{})
	if !q.Async(func() {
		defer close(finished)
		task()
	}) {
		return ErrClosed
	}

	select {
	case <-finished:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain runs every queued task, including tasks queued while draining,
// on the calling goroutine and returns how many ran.
func (q *Queue) Drain() int {
	n := 0
	for {
		q.mu.Lock()
		batch := q.tasks
		q.tasks = nil
		q.mu.Unlock()

		if len(batch) == 0 {
			return n
		}
		for _, task := range batch {
			task()
		}
		n += len(batch)
	}
}

// Run makes the calling goroutine the owner and executes tasks until ctx is
// cancelled or the queue is closed.
func (q *Queue) Run(ctx context.Context) error {
	for {
		q.Drain()
		select {
		case <-q.wake:
		case <-q.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Len returns the number of tasks waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close rejects further tasks, discards pending ones and stops Run.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.tasks = nil
	close(q.done)
}
