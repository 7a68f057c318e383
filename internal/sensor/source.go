package sensor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/muurk/climanode/internal/device"
)

// Source produces readings.
type Source interface {
	Read(ctx context.Context) (device.Reading, error)
}

// Simulated drifts a reading inside fixed bounds.
type Simulated struct {
	mu      sync.Mutex
	current device.Reading
	rng     *rand.Rand
	step    float64
}

// NewSimulated starts the walk at start. The same seed yields the same walk.
func NewSimulated(start device.Reading, seed uint64) *Simulated {
	return &Simulated{
		current: start,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		step:    0.5,
	}
}

func (s *Simulated) Read(ctx context.Context) (device.Reading, error) {
	if err := ctx.Err(); err != nil {
		return device.Reading{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Temperature = clamp(s.current.Temperature+(s.rng.Float64()*2-1)*s.step, 10, 40)
	s.current.Humidity = clamp(s.current.Humidity+(s.rng.Float64()*2-1)*s.step*2, 10, 90)
	return device.Reading{
		Temperature: math.Round(s.current.Temperature*10) / 10,
		Humidity:    math.Round(s.current.Humidity*10) / 10,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

const maxLine = 256

// SerialConfig selects the port a sensor board is attached to.
type SerialConfig struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

// Serial reads line-oriented readings from a serial port.
type Serial struct {
	mu      sync.Mutex
	port    serial.Port
	pending []byte
	name    string
}

// OpenSerial opens cfg.Port.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 115200
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 2 * time.Second
	}

	p, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Port, err)
	}
	if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", cfg.Port, err)
	}
	return newSerial(p, cfg.Port), nil
}

func newSerial(p serial.Port, name string) *Serial {
	return &Serial{port: p, name: name}
}

// Read returns the next complete line as a reading. A read timeout on the
// port with no complete line buffered is reported as an error.
func (s *Serial) Read(ctx context.Context) (device.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, 128)
	for {
		if err := ctx.Err(); err != nil {
			return device.Reading{}, err
		}
		if i := bytes.IndexByte(s.pending, '\n'); i >= 0 {
			line := strings.TrimSpace(string(s.pending[:i]))
			s.pending = s.pending[i+1:]
			if line == "" {
				continue
			}
			return ParseLine(line)
		}

		n, err := s.port.Read(buf)
		if err != nil {
			return device.Reading{}, fmt.Errorf("read %s: %w", s.name, err)
		}
		if n == 0 {
			return device.Reading{}, fmt.Errorf("no data from %s", s.name)
		}
		s.pending = append(s.pending, buf[:n]...)
		if len(s.pending) > maxLine {
			s.pending = nil
			return device.Reading{}, device.NewMalformedError("sensor line too long", nil)
		}
	}
}

// Close closes the port.
func (s *Serial) Close() error {
	return s.port.Close()
}

// ParseLine decodes "T=<float>;H=<float>" or a JSON object with
// temperature and humidity fields.
func ParseLine(line string) (device.Reading, error) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "{") {
		var v struct {
			Temperature *float64 `json:"temperature"`
			Humidity    *float64 `json:"humidity"`
		}
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			return device.Reading{}, device.NewMalformedError("invalid sensor json", err)
		}
		if v.Temperature == nil || v.Humidity == nil {
			return device.Reading{}, device.NewMalformedError("sensor json missing fields", nil)
		}
		return device.Reading{Temperature: *v.Temperature, Humidity: *v.Humidity}, nil
	}

	r := device.Reading{Temperature: math.NaN(), Humidity: math.NaN()}
	for _, part := range strings.Split(line, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return device.Reading{}, device.NewMalformedError(fmt.Sprintf("invalid sensor field %q", part), nil)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return device.Reading{}, device.NewMalformedError(fmt.Sprintf("invalid sensor value %q", value), err)
		}
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "T":
			r.Temperature = f
		case "H":
			r.Humidity = f
		}
	}
	if math.IsNaN(r.Temperature) && math.IsNaN(r.Humidity) {
		return device.Reading{}, device.NewMalformedError("sensor line has no fields", nil)
	}
	return r, nil
}
