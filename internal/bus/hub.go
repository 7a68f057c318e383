package bus

import (
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/climanode/internal/device"
	"github.com/muurk/climanode/internal/logging"
	"github.com/muurk/climanode/internal/metrics"
)

// DefaultSubscriptionBuffer is the per-subscriber backlog before results are
// dropped for that subscriber.
const DefaultSubscriptionBuffer = 64

// Hub publishes results to durable subscribers and one-shot waiters.
type Hub struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	waiters map[string]chan device.Result
	metrics *metrics.Metrics
}

// Subscription receives every result published after it was created.
type Subscription struct {
	name string
	ch   chan device.Result
	hub  *Hub
	once sync.Once
}

// NewHub returns an empty hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		subs:    make(map[*Subscription]struct{}),
		waiters: make(map[string]chan device.Result),
		metrics: m,
	}
}

// Subscribe registers a durable subscriber. name labels drop accounting.
func (h *Hub) Subscribe(name string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}
	s := &Subscription{name: name, ch: make(chan device.Result, buffer), hub: h}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// C returns the delivery channel. It is closed by Close.
func (s *Subscription) C() <-chan device.Result { return s.ch }

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}

// Await registers a one-shot waiter for correlationID. The returned channel
// receives the matching result once. cancel removes the waiter if the caller
// stops waiting first.
func (h *Hub) Await(correlationID string) (<-chan device.Result, func()) {
	ch := make(chan device.Result, 1)

	h.mu.Lock()
	h.waiters[correlationID] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if h.waiters[correlationID] == ch {
			delete(h.waiters, correlationID)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers r to every subscriber in publish order and to the waiter
// registered for its correlation id. Publish never blocks; a subscriber whose
// buffer is full misses the result.
func (h *Hub) Publish(r device.Result) {
	var dropped []string

	h.mu.Lock()
	for s := range h.subs {
		select {
		case s.ch <- r:
		default:
			dropped = append(dropped, s.name)
		}
	}
	if w, ok := h.waiters[r.CorrelationID]; ok && r.CorrelationID != "" {
		w <- r
		delete(h.waiters, r.CorrelationID)
	}
	h.mu.Unlock()

	h.metrics.ObserveResult(r)
	for _, name := range dropped {
		h.metrics.ResultDropped(name)
		logging.Warn("Result dropped for slow subscriber",
			zap.String("subscriber", name),
			zap.String("target", r.Target.String()),
			zap.String("correlation_id", r.CorrelationID),
		)
	}
}

// Subscribers returns the number of durable subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
