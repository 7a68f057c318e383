package bus

import (
	"testing"
	"time"

	"github.com/muurk/climanode/internal/device"
)

func TestHubBroadcastOrder(t *testing.T) {
	h := NewHub(nil)
	a := h.Subscribe("cloud", 8)
	b := h.Subscribe("ui", 8)
	defer a.Close()
	defer b.Close()

	for _, id := range []string{"1", "2", "3"} {
		h.Publish(device.Result{Target: device.Led, Accepted: true, CorrelationID: id})
	}

	for _, sub := range []*Subscription{a, b} {
		for _, want := range []string{"1", "2", "3"} {
			select {
			case r := <-sub.C():
				if r.CorrelationID != want {
					t.Errorf("%s got %s, want %s", sub.name, r.CorrelationID, want)
				}
			case <-time.After(time.Second):
				t.Fatalf("%s: no result", sub.name)
			}
		}
	}
}

func TestHubAwaitOneShot(t *testing.T) {
	h := NewHub(nil)

	ch, cancel := h.Await("ui-1")
	defer cancel()

	h.Publish(device.Result{Target: device.NeoPixel, CorrelationID: "other"})
	h.Publish(device.Result{Target: device.NeoPixel, NewState: true, Accepted: true, CorrelationID: "ui-1"})

	select {
	case r := <-ch:
		if r.CorrelationID != "ui-1" || !r.NewState {
			t.Errorf("waiter got %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not notified")
	}

	// The waiter is removed after delivery, a duplicate id does not block.
	h.Publish(device.Result{CorrelationID: "ui-1"})
	h.mu.Lock()
	n := len(h.waiters)
	h.mu.Unlock()
	if n != 0 {
		t.Errorf("waiters left = %d, want 0", n)
	}
}

func TestHubAwaitCancel(t *testing.T) {
	h := NewHub(nil)
	_, cancel := h.Await("x")
	cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.waiters) != 0 {
		t.Error("cancel did not remove waiter")
	}
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(nil)
	slow := h.Subscribe("slow", 1)
	defer slow.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			h.Publish(device.Result{Target: device.Led})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if len(slow.C()) != 1 {
		t.Errorf("buffered = %d, want 1", len(slow.C()))
	}
}

func TestSubscriptionClose(t *testing.T) {
	h := NewHub(nil)
	s := h.Subscribe("tmp", 1)
	s.Close()
	s.Close()

	if h.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", h.Subscribers())
	}
	if _, ok := <-s.C(); ok {
		t.Error("channel should be closed")
	}
	h.Publish(device.Result{})
}
