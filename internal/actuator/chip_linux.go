//go:build linux

package actuator

import (
	"errors"
	"fmt"
	"sync"

	gpiod "github.com/warthog618/go-gpiocdev"
)

// ChipConfig names the character device and line offsets.
type ChipConfig struct {
	Chip      string
	LED       int
	PixelRGB  [3]int
	ActiveLow bool
}

// Chip drives outputs through a GPIO character device.
type Chip struct {
	mu    sync.Mutex
	chip  *gpiod.Chip
	cfg   ChipConfig
	led   *gpiod.Line
	pixel [3]*gpiod.Line
	lines map[int]*gpiod.Line
}

// OpenChip opens cfg.Chip and requests the LED and pixel lines as outputs,
// initially off.
func OpenChip(cfg ChipConfig) (*Chip, error) {
	chip, err := gpiod.NewChip(cfg.Chip, gpiod.WithConsumer("climanode"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", cfg.Chip, err)
	}

	c := &Chip{chip: chip, cfg: cfg, lines: make(map[int]*gpiod.Line)}

	if c.led, err = c.request(cfg.LED); err != nil {
		_ = c.Close()
		return nil, err
	}
	for i, offset := range cfg.PixelRGB {
		if c.pixel[i], err = c.request(offset); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Chip) request(offset int) (*gpiod.Line, error) {
	opts := []gpiod.LineReqOption{gpiod.AsOutput(0)}
	if c.cfg.ActiveLow {
		opts = append(opts, gpiod.AsActiveLow)
	}
	line, err := c.chip.RequestLine(offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("request output line %d: %w", offset, err)
	}
	return line, nil
}

func level(on bool) int {
	if on {
		return 1
	}
	return 0
}

func (c *Chip) SetLED(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.led.SetValue(level(on)); err != nil {
		return fmt.Errorf("set led line: %w", err)
	}
	return nil
}

func (c *Chip) SetPixel(col Color) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, v := range []uint8{col.R, col.G, col.B} {
		if err := c.pixel[i].SetValue(level(v > 0)); err != nil {
			return fmt.Errorf("set pixel line %d: %w", c.cfg.PixelRGB[i], err)
		}
	}
	return nil
}

// SetGPIO requests pin on first use and keeps it for later writes.
func (c *Chip) SetGPIO(pin int, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, ok := c.lines[pin]
	if !ok {
		var err error
		if line, err = c.request(pin); err != nil {
			return err
		}
		c.lines[pin] = line
	}
	if err := line.SetValue(level(on)); err != nil {
		return fmt.Errorf("set gpio %d: %w", pin, err)
	}
	return nil
}

func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	closeLine := func(l *gpiod.Line) {
		if l != nil {
			if err := l.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	closeLine(c.led)
	for _, l := range c.pixel {
		closeLine(l)
	}
	for pin, l := range c.lines {
		closeLine(l)
		delete(c.lines, pin)
	}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		c.chip = nil
	}
	return errors.Join(errs...)
}
