// Package dispatch serialises work onto a single goroutine.
//
// Every device notification, store write event and timer tick of the bridge is
// posted to one Queue, so no two handlers ever run concurrently against the
// same device object or store node.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned when work is submitted to a closed queue.
var ErrClosed = errors.New("dispatch: queue closed")

// Logger is the optional logging interface used for recovered panics.
type Logger interface {
	Error(msg string, keysAndValues ...any)
}

// Queue is an unbounded FIFO executed by one worker goroutine.
//
// Post never blocks. Do blocks until the submitted function has run and must
// not be called from a function that is itself running on the queue.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []func()
	closed bool

	done   chan struct{}
	logger Logger
}

// New creates a queue and starts its worker.
func New(logger Logger) *Queue {
	q := &Queue{
		done:   make(chan struct{}),
		logger: logger,
	}
	q.cond = sync.NewCond(&q.mu)

	go q.run()

	return q
}

// Post appends fn to the queue. It reports false if the queue is closed.
func (q *Queue) Post(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, fn)
	q.cond.Signal()
	return true
}

// Do runs fn on the queue and waits for it to finish.
func (q *Queue) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !q.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch: waiting for queued work: %w", ctx.Err())
	}
}

// Flush waits until everything posted before the call has run.
func (q *Queue) Flush(ctx context.Context) error {
	return q.Do(ctx, func() {})
}

// Close stops accepting work, runs what is already queued and waits for the
// worker to exit. Safe to call multiple times.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.cond.Signal()
	}
	q.mu.Unlock()

	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		fn := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		q.execute(fn)
	}
}

// execute runs fn with panic recovery so one faulty handler cannot stop the
// bridge's processing sequence.
func (q *Queue) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil && q.logger != nil {
			q.logger.Error("dispatch handler panic recovered", "panic", r)
		}
	}()
	fn()
}
