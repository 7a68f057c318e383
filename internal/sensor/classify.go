package sensor

import "github.com/muurk/climanode/internal/device"

// DisplayState is the overall environment status.
type DisplayState int

const (
	StateNormal DisplayState = iota
	StateWarning
	StateCritical
)

func (s DisplayState) String() string {
	switch s {
	case StateWarning:
		return "WARNING"
	case StateCritical:
		return "CRITICAL"
	default:
		return "NORMAL"
	}
}

// Limits bounds one quantity. Values outside [Low, High] trip the level.
type Limits struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

func (l Limits) outside(v float64) bool { return v < l.Low || v > l.High }

// Classification holds the warning and critical limits of both quantities.
type Classification struct {
	TemperatureWarning  Limits `yaml:"temperature_warning"`
	TemperatureCritical Limits `yaml:"temperature_critical"`
	HumidityWarning     Limits `yaml:"humidity_warning"`
	HumidityCritical    Limits `yaml:"humidity_critical"`
}

// DefaultClassification returns the stock display limits.
func DefaultClassification() Classification {
	return Classification{
		TemperatureWarning:  Limits{Low: 18, High: 32},
		TemperatureCritical: Limits{Low: 15, High: 35},
		HumidityWarning:     Limits{Low: 30, High: 70},
		HumidityCritical:    Limits{Low: 20, High: 80},
	}
}

// Classify applies c to r. Critical takes precedence over warning.
func (c Classification) Classify(r device.Reading) DisplayState {
	switch {
	case c.TemperatureCritical.outside(r.Temperature) || c.HumidityCritical.outside(r.Humidity):
		return StateCritical
	case c.TemperatureWarning.outside(r.Temperature) || c.HumidityWarning.outside(r.Humidity):
		return StateWarning
	default:
		return StateNormal
	}
}

// Classify applies the default limits.
func Classify(r device.Reading) DisplayState {
	return DefaultClassification().Classify(r)
}
