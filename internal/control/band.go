package control

import (
	"fmt"
	"time"

	"github.com/muurk/climanode/internal/actuator"
)

// Band is the classification of a reading against two thresholds.
type Band int

const (
	BandLow Band = iota
	BandMiddle
	BandHigh
)

// SelectBand returns BandLow when v < low, BandHigh when v > high and
// BandMiddle otherwise. Both thresholds belong to the middle band.
func SelectBand(v, low, high float64) Band {
	switch {
	case v < low:
		return BandLow
	case v > high:
		return BandHigh
	default:
		return BandMiddle
	}
}

// TemperatureLabel names a temperature band.
func TemperatureLabel(b Band) string {
	switch b {
	case BandLow:
		return "COLD"
	case BandMiddle:
		return "NORMAL"
	case BandHigh:
		return "HOT"
	default:
		return fmt.Sprintf("Band(%d)", int(b))
	}
}

// HumidityLabel names a humidity band.
func HumidityLabel(b Band) string {
	switch b {
	case BandLow:
		return "DRY"
	case BandMiddle:
		return "COMFORTABLE"
	case BandHigh:
		return "HUMID"
	default:
		return fmt.Sprintf("Band(%d)", int(b))
	}
}

// Thresholds are the band boundaries for one quantity.
type Thresholds struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Blink is a two-phase LED pattern.
type Blink struct {
	On  time.Duration `yaml:"on"`
	Off time.Duration `yaml:"off"`
}

// DefaultTemperatureThresholds returns the cold and normal limits in °C.
func DefaultTemperatureThresholds() Thresholds {
	return Thresholds{Low: 22, High: 29}
}

// DefaultHumidityThresholds returns the dry and comfortable limits in %.
func DefaultHumidityThresholds() Thresholds {
	return Thresholds{Low: 40, High: 60}
}

// DefaultBlinks returns the LED pattern for each temperature band.
func DefaultBlinks() [3]Blink {
	return [3]Blink{
		BandLow:    {On: 2000 * time.Millisecond, Off: 200 * time.Millisecond},
		BandMiddle: {On: 1000 * time.Millisecond, Off: 1000 * time.Millisecond},
		BandHigh:   {On: 200 * time.Millisecond, Off: 200 * time.Millisecond},
	}
}

// DefaultColors returns the pixel color for each humidity band.
func DefaultColors() [3]actuator.Color {
	return [3]actuator.Color{
		BandLow:    actuator.Red,
		BandMiddle: actuator.Green,
		BandHigh:   actuator.Blue,
	}
}
