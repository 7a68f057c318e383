//go:build !linux

package actuator

import "errors"

// ChipConfig names the character device and line offsets.
type ChipConfig struct {
	Chip      string
	LED       int
	PixelRGB  [3]int
	ActiveLow bool
}

// Chip is only available on Linux.
type Chip struct{}

// OpenChip always fails on this platform.
func OpenChip(cfg ChipConfig) (*Chip, error) {
	return nil, errors.New("gpio character devices are only supported on linux")
}

func (c *Chip) SetLED(on bool) error           { return errors.ErrUnsupported }
func (c *Chip) SetPixel(col Color) error       { return errors.ErrUnsupported }
func (c *Chip) SetGPIO(pin int, on bool) error { return errors.ErrUnsupported }
func (c *Chip) Close() error                   { return nil }
