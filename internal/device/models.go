package device

import (
	"fmt"
	"math"
)

// Default sensor values used before the first valid reading arrives.
const (
	DefaultTemperature = 25.0
	DefaultHumidity    = 50.0
)

// Default wire pin numbers for the ESP32-S3 reference board.
const (
	DefaultLEDPin = 48
	DefaultNeoPin = 45
)

// Reading is a single temperature/humidity sample.
type Reading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// DefaultReading returns the documented safe defaults.
func DefaultReading() Reading {
	return Reading{Temperature: DefaultTemperature, Humidity: DefaultHumidity}
}

// Valid reports whether both fields are numeric.
func (r Reading) Valid() bool {
	return !math.IsNaN(r.Temperature) && !math.IsNaN(r.Humidity) &&
		!math.IsInf(r.Temperature, 0) && !math.IsInf(r.Humidity, 0)
}

// Kind is the actuator family.
type Kind int

const (
	KindLed Kind = iota
	KindNeoPixel
	KindGenericGpio
)

// String returns a human-readable name for the actuator kind
func (k Kind) String() string {
	switch k {
	case KindLed:
		return "led"
	case KindNeoPixel:
		return "neopixel"
	case KindGenericGpio:
		return "gpio"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ActuatorID identifies a physical output. Pin is only meaningful for
// KindGenericGpio; it is zero for the named actuators.
type ActuatorID struct {
	Kind Kind
	Pin  int
}

var (
	// Led is the temperature-driven binary LED.
	Led = ActuatorID{Kind: KindLed}
	// NeoPixel is the humidity-driven RGB pixel.
	NeoPixel = ActuatorID{Kind: KindNeoPixel}
)

// GenericGpio returns the identifier of a stateless GPIO output.
func GenericGpio(pin int) ActuatorID {
	return ActuatorID{Kind: KindGenericGpio, Pin: pin}
}

// Overridable reports whether the actuator has an autonomous owner and
// therefore carries an override flag.
func (id ActuatorID) Overridable() bool {
	return id.Kind == KindLed || id.Kind == KindNeoPixel
}

func (id ActuatorID) String() string {
	if id.Kind == KindGenericGpio {
		return fmt.Sprintf("gpio%d", id.Pin)
	}
	return id.Kind.String()
}

// PinMap translates between actuator identifiers and wire GPIO numbers.
type PinMap struct {
	LED int `yaml:"led"`
	Neo int `yaml:"neo"`
}

// DefaultPinMap returns the reference board wiring.
func DefaultPinMap() PinMap {
	return PinMap{LED: DefaultLEDPin, Neo: DefaultNeoPin}
}

// Pin returns the wire GPIO number of id.
func (m PinMap) Pin(id ActuatorID) int {
	switch id.Kind {
	case KindLed:
		return m.LED
	case KindNeoPixel:
		return m.Neo
	default:
		return id.Pin
	}
}

// Resolve maps a wire GPIO number to an actuator. Pins that are not wired to
// a named actuator resolve to GenericGpio.
func (m PinMap) Resolve(pin int) ActuatorID {
	switch pin {
	case m.LED:
		return Led
	case m.Neo:
		return NeoPixel
	default:
		return GenericGpio(pin)
	}
}

// Channel is the origin of a command.
type Channel int

const (
	ChannelCloud Channel = iota
	ChannelUI
	ChannelLocal
)

func (c Channel) String() string {
	switch c {
	case ChannelCloud:
		return "cloud"
	case ChannelUI:
		return "ui"
	case ChannelLocal:
		return "local"
	default:
		return fmt.Sprintf("Channel(%d)", int(c))
	}
}

// Action selects what a command does to its target.
type Action int

const (
	// ActionSet forces the output to DesiredState and enters manual mode.
	ActionSet Action = iota
	// ActionRelease clears the override and hands control back to the
	// autonomous controller. Only accepted when override release is enabled.
	ActionRelease
)

func (a Action) String() string {
	if a == ActionRelease {
		return "release"
	}
	return "set"
}

// Command is the normalized request produced by a gateway adapter.
type Command struct {
	Target        ActuatorID
	DesiredState  bool
	Action        Action
	Origin        Channel
	CorrelationID string
}

// Result is published by the dispatcher for every command it consumes.
type Result struct {
	Target        ActuatorID
	NewState      bool
	Accepted      bool
	Origin        Channel
	CorrelationID string
}

// DeviceConfig is the configuration record guarded by the state store.
type DeviceConfig struct {
	CloudToken       string
	CloudServer      string
	CloudPort        string
	WifiSSID         string
	WifiPass         string
	Override         map[ActuatorID]bool
	WebserverRunning bool
}

// Clone returns a deep copy of the record.
func (c DeviceConfig) Clone() DeviceConfig {
	out := c
	out.Override = make(map[ActuatorID]bool, len(c.Override))
	for k, v := range c.Override {
		out.Override[k] = v
	}
	return out
}

// StatusString renders a boolean output state the way both wire protocols do.
func StatusString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
