// Package telemetry periodically publishes the stored reading to every
// configured sink.
package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/climanode/internal/device"
	"github.com/muurk/climanode/internal/logging"
	"github.com/muurk/climanode/internal/metrics"
	"github.com/muurk/climanode/internal/sensor"
	"github.com/muurk/climanode/internal/state"
)

const DefaultInterval = 10 * time.Second

// Sample is one telemetry snapshot.
type Sample struct {
	Reading device.Reading
	State   sensor.DisplayState
	Time    time.Time
}

// Sink receives samples.
type Sink interface {
	Name() string
	Publish(ctx context.Context, s Sample) error
}

// Publisher fans each sample out to its sinks.
type Publisher struct {
	store    *state.Store
	sinks    []Sink
	interval time.Duration
	classes  sensor.Classification
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

func NewPublisher(store *state.Store, interval time.Duration, classes sensor.Classification, m *metrics.Metrics, sinks ...Sink) *Publisher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Publisher{
		store:    store,
		sinks:    sinks,
		interval: interval,
		classes:  classes,
		metrics:  m,
		log:      logging.Named("telemetry"),
		now:      time.Now,
	}
}

// Run publishes on every tick until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	names := make([]string, 0, len(p.sinks))
	for _, s := range p.sinks {
		names = append(names, s.Name())
	}
	p.log.Info("Telemetry publisher started",
		zap.Duration("interval", p.interval),
		zap.Strings("sinks", names),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("Telemetry publisher stopped")
			return nil
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick publishes one sample. A busy store skips the cycle and a failing
// sink does not stop the others. It returns the number of sinks that failed.
func (p *Publisher) Tick(ctx context.Context) int {
	r, err := p.store.Sensor()
	if err != nil {
		p.metrics.LockTimeout("telemetry")
		p.log.Warn("Skipping telemetry cycle", zap.Error(err))
		return 0
	}

	sample := Sample{Reading: r, State: p.classes.Classify(r), Time: p.now()}
	p.metrics.ObserveReading(r)

	failed := 0
	for _, s := range p.sinks {
		if err := s.Publish(ctx, sample); err != nil {
			failed++
			p.metrics.SinkError(s.Name())
			p.log.Warn("Telemetry sink failed", zap.String("sink", s.Name()), zap.Error(err))
		}
	}
	p.log.Debug("Telemetry published",
		zap.Float64("temperature", r.Temperature),
		zap.Float64("humidity", r.Humidity),
		zap.Stringer("state", sample.State),
		zap.Int("failed_sinks", failed),
	)
	return failed
}
