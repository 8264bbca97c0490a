package queue

import (
	"context"
	"fmt"

	"github.com/LerianStudio/lib-dispatch/dispatch/message"
)

// DefaultCapacity is used when a bounded queue is constructed with a
// non-positive capacity.
const DefaultCapacity = 1000

// Bounded is a capacity-limited FIFO buffer of messages. It is safe for many
// concurrent producers and consumers; a full queue blocks producers rather
// than dropping, converting overload into caller-visible latency.
type Bounded struct {
	items chan *message.Message
}

// NewBounded creates a queue holding at most capacity messages.
func NewBounded(capacity int) *Bounded {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Bounded{items: make(chan *message.Message, capacity)}
}

// Enqueue inserts msg at the tail, blocking while the queue is full. A
// cancelled ctx aborts the wait and leaves the queue unchanged. Messages are
// never silently dropped.
func (q *Bounded) Enqueue(ctx context.Context, msg *message.Message) error {
	if msg == nil {
		return message.ErrMessageRequired
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	select {
	case q.items <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue: %w", ctx.Err())
	}
}

// Dequeue removes and returns the head message, blocking while the queue is
// empty. A cancelled ctx aborts the wait.
func (q *Bounded) Dequeue(ctx context.Context) (*message.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}

	select {
	case msg := <-q.items:
		return msg, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("dequeue: %w", ctx.Err())
	}
}

// TryDequeue removes and returns the head message without blocking. The
// second return value is false when the queue is empty.
func (q *Bounded) TryDequeue() (*message.Message, bool) {
	select {
	case msg := <-q.items:
		return msg, true
	default:
		return nil, false
	}
}

// Size returns the current depth. Safe to call concurrently with enqueue and
// dequeue; used for health reporting and backpressure visibility.
func (q *Bounded) Size() int {
	return len(q.items)
}

// Capacity returns the fixed capacity set at construction.
func (q *Bounded) Capacity() int {
	return cap(q.items)
}
