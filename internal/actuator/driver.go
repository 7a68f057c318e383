package actuator

import (
	"fmt"
	"sync"
)

// Color is an RGB pixel value.
type Color struct {
	R uint8 `json:"r" yaml:"r"`
	G uint8 `json:"g" yaml:"g"`
	B uint8 `json:"b" yaml:"b"`
}

var (
	Off   = Color{}
	Red   = Color{R: 255}
	Green = Color{G: 255}
	Blue  = Color{B: 255}
	White = Color{R: 255, G: 255, B: 255}
)

// IsOff reports whether every channel is dark.
func (c Color) IsOff() bool { return c == Off }

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Driver writes output levels to hardware.
type Driver interface {
	SetLED(on bool) error
	SetPixel(c Color) error
	SetGPIO(pin int, on bool) error
	Close() error
}

// Simulated is an in-memory Driver.
type Simulated struct {
	mu     sync.Mutex
	led    bool
	pixel  Color
	gpio   map[int]bool
	writes []Write
	fail   map[string]error
}

// Write is one recorded Simulated write.
type Write struct {
	Output string
	On     bool
	Color  Color
}

// NewSimulated returns a simulated driver with every output off.
func NewSimulated() *Simulated {
	return &Simulated{gpio: make(map[int]bool), fail: make(map[string]error)}
}

// FailOn makes writes to output ("led", "pixel" or "gpio<pin>") return err.
// A nil err clears the failure.
func (s *Simulated) FailOn(output string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, output)
		return
	}
	s.fail[output] = err
}

func (s *Simulated) SetLED(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail["led"]; err != nil {
		return err
	}
	s.led = on
	s.writes = append(s.writes, Write{Output: "led", On: on})
	return nil
}

func (s *Simulated) SetPixel(c Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail["pixel"]; err != nil {
		return err
	}
	s.pixel = c
	s.writes = append(s.writes, Write{Output: "pixel", On: !c.IsOff(), Color: c})
	return nil
}

func (s *Simulated) SetGPIO(pin int, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := fmt.Sprintf("gpio%d", pin)
	if err := s.fail[name]; err != nil {
		return err
	}
	s.gpio[pin] = on
	s.writes = append(s.writes, Write{Output: name, On: on})
	return nil
}

func (s *Simulated) Close() error { return nil }

// LED returns the current LED level.
func (s *Simulated) LED() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.led
}

// Pixel returns the current pixel color.
func (s *Simulated) Pixel() Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pixel
}

// GPIO returns the current level of pin.
func (s *Simulated) GPIO(pin int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gpio[pin]
}

// Writes returns a copy of every recorded write.
func (s *Simulated) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Write, len(s.writes))
	copy(out, s.writes)
	return out
}
