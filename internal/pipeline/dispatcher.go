package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	ErrQueueFull   = errors.New("dispatch queue full")
	ErrQueueClosed = errors.New("dispatch queue closed")
)

// Dispatcher hands a stage message off for asynchronous execution. Dispatch
// returns once the message is accepted; execution happens elsewhere. A failed
// execution is logged, never retried.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// Handler executes one dispatched stage message.
type Handler func(ctx context.Context, msg Message) error

// QueueDispatcher is an in-process dispatcher backed by a buffered channel
// and a single worker goroutine. Within one job this preserves strict stage
// ordering because each stage is only dispatched by its predecessor; across
// jobs messages interleave freely.
type QueueDispatcher struct {
	queue chan Message
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewQueueDispatcher creates a dispatcher with the given queue capacity.
// Start must be called before any Dispatch is executed.
func NewQueueDispatcher(size int) *QueueDispatcher {
	return &QueueDispatcher{
		queue: make(chan Message, size),
		done:  make(chan struct{}),
	}
}

// Start launches the worker goroutine. Execution errors are logged and
// dropped: the failed stage has already written the job's ERROR state, and
// there is no automatic retry.
func (d *QueueDispatcher) Start(handler Handler) {
	go func() {
		defer close(d.done)
		for msg := range d.queue {
			if err := handler(context.Background(), msg); err != nil {
				slog.Error("stage execution failed",
					"job_id", msg.JobID,
					"stage", msg.Stage,
					"error", err,
				)
			}
		}
	}()
}

// Dispatch enqueues a message without blocking. A full or closed queue is an
// observable error for the caller to log; it does not fail the caller's own
// completed work.
func (d *QueueDispatcher) Dispatch(_ context.Context, msg Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting new messages and waits for the worker to drain
// the queue, or until ctx expires.
func (d *QueueDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Dispatcher = (*QueueDispatcher)(nil)
