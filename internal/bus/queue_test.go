package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/muurk/climanode/internal/device"
)

func cmd(id string) device.Command {
	return device.Command{Target: device.Led, DesiredState: true, Origin: device.ChannelCloud, CorrelationID: id}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4, 10*time.Millisecond)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		if err := q.Enqueue(ctx, cmd(id), 0); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", id, err)
		}
	}

	for _, want := range []string{"1", "2", "3"} {
		got, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue() error = %v", err)
		}
		if got.CorrelationID != want {
			t.Errorf("Dequeue() = %s, want %s", got.CorrelationID, want)
		}
	}
}

func TestQueueBackpressure(t *testing.T) {
	q := NewQueue(10, 0)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := q.Enqueue(ctx, cmd("fill"), 5*time.Millisecond); err != nil {
			t.Fatalf("Enqueue #%d error = %v", i, err)
		}
	}

	start := time.Now()
	err := q.Enqueue(ctx, cmd("overflow"), 20*time.Millisecond)
	if !errors.Is(err, device.ErrBackpressure) {
		t.Fatalf("Enqueue() on full queue error = %v, want ErrBackpressure", err)
	}
	if time.Since(start) < 15*time.Millisecond {
		t.Error("Enqueue returned before its timeout elapsed")
	}
	if q.Len() != 10 {
		t.Errorf("Len() = %d, want 10", q.Len())
	}

	// Every queued command is still intact and in order.
	for i := 0; i < 10; i++ {
		got, _ := q.Dequeue(ctx)
		if got.CorrelationID != "fill" {
			t.Fatalf("unexpected command %q", got.CorrelationID)
		}
	}
}

func TestQueueEnqueueWaitsForSlot(t *testing.T) {
	q := NewQueue(1, 0)
	ctx := context.Background()
	_ = q.Enqueue(ctx, cmd("a"), 0)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = q.Dequeue(ctx)
	}()

	if err := q.Enqueue(ctx, cmd("b"), time.Second); err != nil {
		t.Fatalf("Enqueue() error = %v, expected to succeed once a slot freed", err)
	}
}

func TestQueueDequeueCancelled(t *testing.T) {
	q := NewQueue(1, 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Dequeue() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after cancellation")
	}
}

func TestQueueExactlyOnce(t *testing.T) {
	q := NewQueue(8, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const producers, perProducer = 4, 50
	seen := make(map[string]int)
	var mu sync.Mutex
	consumed := make(chan struct{})

	go func() {
		for i := 0; i < producers*perProducer; i++ {
			c, err := q.Dequeue(ctx)
			if err != nil {
				return
			}
			mu.Lock()
			seen[c.CorrelationID]++
			mu.Unlock()
		}
		close(consumed)
	}()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				id := fmt.Sprintf("%d-%d", p, i)
				if err := q.Enqueue(ctx, cmd(id), 0); err != nil {
					t.Errorf("Enqueue() error = %v", err)
				}
			}
		}(p)
	}
	wg.Wait()

	select {
	case <-consumed:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}

	if len(seen) != producers*perProducer {
		t.Errorf("distinct commands = %d, want %d", len(seen), producers*perProducer)
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("command %s dequeued %d times", id, n)
		}
	}
}
