package sensor

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/climanode/internal/device"
	"github.com/muurk/climanode/internal/logging"
	"github.com/muurk/climanode/internal/metrics"
	"github.com/muurk/climanode/internal/state"
)

const DefaultInterval = 5 * time.Second

// Monitor polls a Source and stores every reading.
type Monitor struct {
	source   Source
	store    *state.Store
	metrics  *metrics.Metrics
	interval time.Duration
	classes  Classification
	log      *zap.Logger
}

func NewMonitor(source Source, store *state.Store, m *metrics.Metrics, interval time.Duration, classes Classification) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		source:   source,
		store:    store,
		metrics:  m,
		interval: interval,
		classes:  classes,
		log:      logging.Named("sensor"),
	}
}

// Run reads once immediately and then on every tick until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("Sensor monitor started", zap.Duration("interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	last := DisplayState(-1)
	for {
		if s, ok := m.poll(ctx); ok && s != last {
			m.log.Info("Display state changed", zap.Stringer("state", s))
			last = s
		}
		select {
		case <-ctx.Done():
			m.log.Info("Sensor monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Monitor) poll(ctx context.Context) (DisplayState, bool) {
	r, err := m.source.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0, false
		}
		m.log.Warn("Sensor read failed, keeping last good values", zap.Error(err))
		r = device.Reading{Temperature: math.NaN(), Humidity: math.NaN()}
	}

	if err := m.store.SetSensor(r); err != nil {
		m.metrics.LockTimeout("sensor")
		m.log.Warn("Reading not stored", zap.Error(err))
		return 0, false
	}

	stored, err := m.store.Sensor()
	if err != nil {
		m.metrics.LockTimeout("sensor")
		return 0, false
	}
	m.log.Debug("Reading stored",
		zap.Float64("temperature", stored.Temperature),
		zap.Float64("humidity", stored.Humidity),
	)
	return m.classes.Classify(stored), true
}
