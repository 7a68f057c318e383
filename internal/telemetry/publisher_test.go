package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/muurk/climanode/internal/device"
	"github.com/muurk/climanode/internal/gateway"
	"github.com/muurk/climanode/internal/sensor"
	"github.com/muurk/climanode/internal/state"
)

type recordingSink struct {
	name string
	err  error

	mu      sync.Mutex
	samples []Sample
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, sample Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func TestTickFansOutDespiteFailures(t *testing.T) {
	store := state.New(device.DeviceConfig{})
	_ = store.SetSensor(device.Reading{Temperature: 36, Humidity: 50})

	broken := &recordingSink{name: "broken", err: errors.New("connection refused")}
	ok := &recordingSink{name: "ok"}
	p := NewPublisher(store, time.Second, sensor.DefaultClassification(), nil, broken, ok)

	if failed := p.Tick(context.Background()); failed != 1 {
		t.Errorf("Tick() failed = %d, want 1", failed)
	}
	if ok.count() != 1 || broken.count() != 1 {
		t.Fatalf("sinks called ok=%d broken=%d", ok.count(), broken.count())
	}
	got := ok.samples[0]
	if got.Reading.Temperature != 36 || got.State != sensor.StateCritical {
		t.Errorf("sample = %+v", got)
	}
}

func TestRunPublishesPeriodically(t *testing.T) {
	store := state.New(device.DeviceConfig{})
	sink := &recordingSink{name: "rec"}
	p := NewPublisher(store, 5*time.Millisecond, sensor.DefaultClassification(), nil, sink)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_ = p.Run(ctx)

	if sink.count() < 2 {
		t.Errorf("published %d samples, want several", sink.count())
	}
}

type fakePublisher struct {
	topic   string
	payload string
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	f.topic, f.payload = topic, string(payload)
	return nil
}

func TestMQTTSink(t *testing.T) {
	pub := &fakePublisher{}
	s := NewMQTTSink(pub)
	err := s.Publish(context.Background(), Sample{Reading: device.Reading{Temperature: 21.5, Humidity: 40}})
	if err != nil {
		t.Fatal(err)
	}
	if pub.topic != gateway.TopicTelemetry {
		t.Errorf("topic = %s", pub.topic)
	}
	if pub.payload != `{"temperature":21.5,"humidity":40}` {
		t.Errorf("payload = %s", pub.payload)
	}
}

type fakeWriteAPI struct {
	api.WriteAPIBlocking
	points []*write.Point
	err    error
}

func (f *fakeWriteAPI) WritePoint(_ context.Context, p ...*write.Point) error {
	f.points = append(f.points, p...)
	return f.err
}

func TestInfluxSink(t *testing.T) {
	w := &fakeWriteAPI{}
	s := &InfluxSink{write: w, device: "node-1"}
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := s.Publish(context.Background(), Sample{
		Reading: device.Reading{Temperature: 24, Humidity: 55},
		State:   sensor.StateNormal,
		Time:    ts,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(w.points) != 1 {
		t.Fatalf("points = %d", len(w.points))
	}
	p := w.points[0]
	if p.Name() != "environment" || !p.Time().Equal(ts) {
		t.Errorf("point = %s at %v", p.Name(), p.Time())
	}
	if len(p.TagList()) != 1 || p.TagList()[0].Value != "node-1" {
		t.Errorf("tags = %v", p.TagList())
	}

	w.err = errors.New("unauthorized")
	if err := s.Publish(context.Background(), Sample{Time: ts}); err == nil {
		t.Error("expected write error")
	}
}
