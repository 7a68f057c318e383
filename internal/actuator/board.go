package actuator

import (
	"sync"

	"github.com/muurk/climanode/internal/device"
)

// Board serializes writes per output and remembers the last level written.
type Board struct {
	driver      Driver
	manualColor Color

	mu     sync.Mutex
	guards map[device.ActuatorID]*sync.Mutex
	levels map[device.ActuatorID]bool
	pixel  Color
}

// NewBoard wraps driver. manualColor is shown when the pixel is switched on
// remotely.
func NewBoard(driver Driver, manualColor Color) *Board {
	if manualColor.IsOff() {
		manualColor = White
	}
	return &Board{
		driver:      driver,
		manualColor: manualColor,
		guards:      make(map[device.ActuatorID]*sync.Mutex),
		levels:      make(map[device.ActuatorID]bool),
	}
}

func (b *Board) guard(id device.ActuatorID) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.guards[id]
	if !ok {
		g = &sync.Mutex{}
		b.guards[id] = g
	}
	return g
}

// Exclusive runs fn while holding the exclusion guard of id. The write
// methods below must only be called from inside fn for the same id.
func (b *Board) Exclusive(id device.ActuatorID, fn func() error) error {
	g := b.guard(id)
	g.Lock()
	defer g.Unlock()
	return fn()
}

// SetLED drives the LED.
func (b *Board) SetLED(on bool) error {
	if err := b.driver.SetLED(on); err != nil {
		return device.NewActuationError(device.Led, err)
	}
	b.record(device.Led, on)
	return nil
}

// SetPixel shows c on the pixel.
func (b *Board) SetPixel(c Color) error {
	if err := b.driver.SetPixel(c); err != nil {
		return device.NewActuationError(device.NeoPixel, err)
	}
	b.mu.Lock()
	b.pixel = c
	b.levels[device.NeoPixel] = !c.IsOff()
	b.mu.Unlock()
	return nil
}

// SetGPIO drives a generic output.
func (b *Board) SetGPIO(pin int, on bool) error {
	id := device.GenericGpio(pin)
	if err := b.driver.SetGPIO(pin, on); err != nil {
		return device.NewActuationError(id, err)
	}
	b.record(id, on)
	return nil
}

// Apply sets id to a binary level. The pixel shows the manual color when on.
func (b *Board) Apply(id device.ActuatorID, on bool) error {
	switch id.Kind {
	case device.KindLed:
		return b.SetLED(on)
	case device.KindNeoPixel:
		if on {
			return b.SetPixel(b.manualColor)
		}
		return b.SetPixel(Off)
	default:
		return b.SetGPIO(id.Pin, on)
	}
}

func (b *Board) record(id device.ActuatorID, on bool) {
	b.mu.Lock()
	b.levels[id] = on
	b.mu.Unlock()
}

// Level returns the last level written to id.
func (b *Board) Level(id device.ActuatorID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.levels[id]
}

// PixelColor returns the last color written to the pixel.
func (b *Board) PixelColor() Color {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pixel
}

// Close releases the driver.
func (b *Board) Close() error {
	return b.driver.Close()
}
