package control

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/climanode/internal/actuator"
	"github.com/muurk/climanode/internal/device"
	"github.com/muurk/climanode/internal/logging"
	"github.com/muurk/climanode/internal/metrics"
	"github.com/muurk/climanode/internal/state"
)

const (
	DefaultOverridePoll  = 500 * time.Millisecond
	DefaultPixelInterval = 2 * time.Second
)

// base holds what both controllers share.
type base struct {
	id      device.ActuatorID
	store   *state.Store
	board   *actuator.Board
	metrics *metrics.Metrics
	poll    time.Duration
	log     *zap.Logger
}

// overridden reads the override flag. A timed out read counts as automatic.
func (b *base) overridden() bool {
	on, err := b.store.Override(b.id)
	if err != nil {
		b.metrics.LockTimeout("control")
		b.log.Debug("Override check timed out, assuming automatic", zap.Error(err))
		return false
	}
	return on
}

// reading returns the stored reading, or the defaults when the store is busy.
func (b *base) reading() device.Reading {
	r, err := b.store.Sensor()
	if err != nil {
		b.metrics.LockTimeout("control")
		b.log.Debug("Sensor read timed out, using defaults", zap.Error(err))
		return device.DefaultReading()
	}
	return r
}

// writeIfAutomatic runs write inside the actuator guard unless the override
// is set. It reports whether the write happened.
func (b *base) writeIfAutomatic(write func() error) bool {
	wrote := false
	err := b.board.Exclusive(b.id, func() error {
		if b.overridden() {
			return nil
		}
		wrote = true
		return write()
	})
	if err != nil {
		b.log.Warn("Autonomous write failed", zap.Error(err))
	}
	return wrote
}

// sleep waits d or until ctx is done. It reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// LEDConfig configures an LEDController.
type LEDConfig struct {
	Store        *state.Store
	Board        *actuator.Board
	Metrics      *metrics.Metrics
	Thresholds   Thresholds
	Blinks       [3]Blink
	OverridePoll time.Duration
}

// LEDController blinks the LED at a rate chosen by the temperature band.
type LEDController struct {
	base
	thresholds Thresholds
	blinks     [3]Blink
	last       Band
}

func NewLEDController(cfg LEDConfig) *LEDController {
	if cfg.OverridePoll <= 0 {
		cfg.OverridePoll = DefaultOverridePoll
	}
	if cfg.Blinks == ([3]Blink{}) {
		cfg.Blinks = DefaultBlinks()
	}
	return &LEDController{
		base: base{
			id:      device.Led,
			store:   cfg.Store,
			board:   cfg.Board,
			metrics: cfg.Metrics,
			poll:    cfg.OverridePoll,
			log:     logging.Named("control.led"),
		},
		thresholds: cfg.Thresholds,
		blinks:     cfg.Blinks,
		last:       -1,
	}
}

// Run blinks until ctx is cancelled.
func (c *LEDController) Run(ctx context.Context) error {
	c.log.Info("LED controller started",
		zap.Float64("cold_below", c.thresholds.Low),
		zap.Float64("hot_above", c.thresholds.High),
	)
	for ctx.Err() == nil {
		if c.overridden() {
			if !sleep(ctx, c.poll) {
				break
			}
			continue
		}

		r := c.reading()
		band := SelectBand(r.Temperature, c.thresholds.Low, c.thresholds.High)
		if band != c.last {
			c.log.Info("Temperature band changed",
				zap.String("band", TemperatureLabel(band)),
				zap.Float64("temperature", r.Temperature),
			)
			c.last = band
		}
		pattern := c.blinks[band]

		if !c.writeIfAutomatic(func() error { return c.board.SetLED(true) }) {
			continue
		}
		if !sleep(ctx, pattern.On) {
			break
		}
		if !c.writeIfAutomatic(func() error { return c.board.SetLED(false) }) {
			continue
		}
		if !sleep(ctx, pattern.Off) {
			break
		}
	}
	c.log.Info("LED controller stopped")
	return nil
}

// PixelConfig configures a PixelController.
type PixelConfig struct {
	Store        *state.Store
	Board        *actuator.Board
	Metrics      *metrics.Metrics
	Thresholds   Thresholds
	Colors       [3]actuator.Color
	Interval     time.Duration
	OverridePoll time.Duration
}

// PixelController colors the pixel by humidity band.
type PixelController struct {
	base
	thresholds Thresholds
	colors     [3]actuator.Color
	interval   time.Duration
	last       Band
}

func NewPixelController(cfg PixelConfig) *PixelController {
	if cfg.OverridePoll <= 0 {
		cfg.OverridePoll = DefaultOverridePoll
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPixelInterval
	}
	if cfg.Colors == ([3]actuator.Color{}) {
		cfg.Colors = DefaultColors()
	}
	return &PixelController{
		base: base{
			id:      device.NeoPixel,
			store:   cfg.Store,
			board:   cfg.Board,
			metrics: cfg.Metrics,
			poll:    cfg.OverridePoll,
			log:     logging.Named("control.pixel"),
		},
		thresholds: cfg.Thresholds,
		colors:     cfg.Colors,
		interval:   cfg.Interval,
		last:       -1,
	}
}

// Run updates the pixel until ctx is cancelled.
func (c *PixelController) Run(ctx context.Context) error {
	c.log.Info("Pixel controller started",
		zap.Float64("dry_below", c.thresholds.Low),
		zap.Float64("humid_above", c.thresholds.High),
	)
	for ctx.Err() == nil {
		if c.overridden() {
			if !sleep(ctx, c.poll) {
				break
			}
			continue
		}

		r := c.reading()
		band := SelectBand(r.Humidity, c.thresholds.Low, c.thresholds.High)
		color := c.colors[band]
		if band != c.last {
			c.log.Info("Humidity band changed",
				zap.String("band", HumidityLabel(band)),
				zap.Float64("humidity", r.Humidity),
				zap.Stringer("color", color),
			)
			c.last = band
		}

		if !c.writeIfAutomatic(func() error { return c.board.SetPixel(color) }) {
			continue
		}
		if !sleep(ctx, c.interval) {
			break
		}
	}
	c.log.Info("Pixel controller stopped")
	return nil
}
