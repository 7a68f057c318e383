package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/muurk/climanode/internal/actuator"
	"github.com/muurk/climanode/internal/bus"
	"github.com/muurk/climanode/internal/device"
	"github.com/muurk/climanode/internal/dispatch"
	"github.com/muurk/climanode/internal/state"
)

type published struct {
	Topic   string
	Payload string
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	ch   chan published
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{ch: make(chan published, 64)}
}

func (p *fakePublisher) Publish(topic string, payload []byte) error {
	m := published{Topic: topic, Payload: string(payload)}
	p.mu.Lock()
	p.msgs = append(p.msgs, m)
	p.mu.Unlock()
	p.ch <- m
	return nil
}

// next waits for the next message on topic, skipping others.
func (p *fakePublisher) next(t *testing.T, topic string) published {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-p.ch:
			if m.Topic == topic {
				return m
			}
		case <-deadline:
			t.Fatalf("no message on %s", topic)
		}
	}
}

type node struct {
	adapter AdapterConfig
	sim     *actuator.Simulated
	board   *actuator.Board
	cancel  context.CancelFunc
	ctx     context.Context
}

// newNode wires a queue, hub, store and a running dispatcher.
func newNode(t *testing.T, allowRelease bool) *node {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	n := &node{ctx: ctx, cancel: cancel, sim: actuator.NewSimulated()}
	n.board = actuator.NewBoard(n.sim, actuator.White)
	n.adapter = AdapterConfig{
		Queue:          bus.NewQueue(10, 20*time.Millisecond),
		Hub:            bus.NewHub(nil),
		Store:          state.New(device.DeviceConfig{CloudServer: "broker.local", CloudPort: "1883", CloudToken: "tok"}),
		Pins:           device.DefaultPinMap(),
		AllowRelease:   allowRelease,
		EnqueueTimeout: 20 * time.Millisecond,
	}
	return n
}

func (n *node) startDispatcher() {
	d := dispatch.New(dispatch.Config{
		Queue:        n.adapter.Queue,
		Hub:          n.adapter.Hub,
		Store:        n.adapter.Store,
		Board:        n.board,
		AllowRelease: n.adapter.AllowRelease,
	})
	go func() { _ = d.Run(n.ctx) }()
}
