package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/LerianStudio/lib-dispatch/dispatch/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMessage(t *testing.T, subject string) *message.Message {
	t.Helper()

	msg, err := message.New(subject, "body")
	require.NoError(t, err)

	return msg
}

func TestNewBounded(t *testing.T) {
	t.Run("uses requested capacity", func(t *testing.T) {
		q := NewBounded(3)
		assert.Equal(t, 3, q.Capacity())
	})

	t.Run("falls back to default on non-positive capacity", func(t *testing.T) {
		assert.Equal(t, DefaultCapacity, NewBounded(0).Capacity())
		assert.Equal(t, DefaultCapacity, NewBounded(-5).Capacity())
	})
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	ctx := context.Background()
	q := NewBounded(10)

	subjects := []string{"first", "second", "third", "fourth"}
	for _, subject := range subjects {
		require.NoError(t, q.Enqueue(ctx, newMessage(t, subject)))
	}

	assert.Equal(t, len(subjects), q.Size())

	for _, subject := range subjects {
		msg, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, subject, msg.Subject)
	}

	assert.Zero(t, q.Size())
}

func TestEnqueueNilMessage(t *testing.T) {
	q := NewBounded(1)

	err := q.Enqueue(context.Background(), nil)
	require.ErrorIs(t, err, message.ErrMessageRequired)
	assert.Zero(t, q.Size())
}

func TestEnqueueBackpressure(t *testing.T) {
	ctx := context.Background()
	q := NewBounded(3)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(ctx, newMessage(t, "filler")))
	}

	blocked := newMessage(t, "blocked")
	enqueued := make(chan error, 1)

	go func() {
		enqueued <- q.Enqueue(ctx, blocked)
	}()

	// The producer must still be blocked while the queue is full.
	select {
	case err := <-enqueued:
		t.Fatalf("enqueue returned while queue was full: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	_, err := q.Dequeue(ctx)
	require.NoError(t, err)

	select {
	case err := <-enqueued:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("enqueue did not unblock after a slot freed up")
	}

	assert.Equal(t, 3, q.Size())
}

func TestEnqueueCancelledContext(t *testing.T) {
	q := NewBounded(1)
	require.NoError(t, q.Enqueue(context.Background(), newMessage(t, "filler")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.Enqueue(ctx, newMessage(t, "rejected"))
	require.ErrorIs(t, err, context.Canceled)

	// The queue must be unchanged: still the single filler message.
	assert.Equal(t, 1, q.Size())

	msg, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "filler", msg.Subject)
}

func TestEnqueueCancelledWhileBlocked(t *testing.T) {
	q := NewBounded(1)
	require.NoError(t, q.Enqueue(context.Background(), newMessage(t, "filler")))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := q.Enqueue(ctx, newMessage(t, "abandoned"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, q.Size())
}

func TestDequeueBlocksUntilMessage(t *testing.T) {
	ctx := context.Background()
	q := NewBounded(1)

	received := make(chan *message.Message, 1)

	go func() {
		msg, err := q.Dequeue(ctx)
		if err == nil {
			received <- msg
		}
	}()

	select {
	case <-received:
		t.Fatal("dequeue returned from an empty queue")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, q.Enqueue(ctx, newMessage(t, "late")))

	select {
	case msg := <-received:
		assert.Equal(t, "late", msg.Subject)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not receive the enqueued message")
	}
}

func TestDequeueCancelledContext(t *testing.T) {
	q := NewBounded(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestTryDequeue(t *testing.T) {
	q := NewBounded(2)

	_, ok := q.TryDequeue()
	assert.False(t, ok)

	require.NoError(t, q.Enqueue(context.Background(), newMessage(t, "only")))

	msg, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "only", msg.Subject)

	_, ok = q.TryDequeue()
	assert.False(t, ok)
}

func TestConcurrentProducers(t *testing.T) {
	ctx := context.Background()

	const (
		producers           = 8
		messagesPerProducer = 25
	)

	q := NewBounded(producers * messagesPerProducer)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := 0; i < messagesPerProducer; i++ {
				msg, err := message.New("concurrent", "body")
				if err != nil {
					continue
				}

				_ = q.Enqueue(ctx, msg)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, producers*messagesPerProducer, q.Size())
}
