package bus

import (
	"context"
	"time"

	"github.com/muurk/climanode/internal/device"
)

const (
	DefaultCapacity       = 10
	DefaultEnqueueTimeout = 100 * time.Millisecond
)

// Queue is a bounded FIFO of commands.
type Queue struct {
	ch      chan device.Command
	timeout time.Duration
}

// NewQueue returns a queue holding at most capacity commands. Enqueue calls
// that pass a zero timeout wait for defaultTimeout.
func NewQueue(capacity int, defaultTimeout time.Duration) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultEnqueueTimeout
	}
	return &Queue{
		ch:      make(chan device.Command, capacity),
		timeout: defaultTimeout,
	}
}

// Enqueue appends cmd, waiting up to timeout for a free slot. A full queue
// yields a Backpressure error and the command is not queued.
func (q *Queue) Enqueue(ctx context.Context, cmd device.Command, timeout time.Duration) error {
	select {
	case q.ch <- cmd:
		return nil
	default:
	}

	if timeout <= 0 {
		timeout = q.timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case q.ch <- cmd:
		return nil
	case <-timer.C:
		return device.NewBackpressureError("command queue full")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks until a command is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (device.Command, error) {
	select {
	case cmd := <-q.ch:
		return cmd, nil
	case <-ctx.Done():
		return device.Command{}, ctx.Err()
	}
}

// Len returns the number of queued commands.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }
