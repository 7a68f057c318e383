// Package state holds the node's shared state: the latest sensor reading and
// the configuration record, including the per-actuator override flags.
//
// Every accessor acquires the store guard with a bounded wait. When the guard
// is not obtained in time the call fails with a device.ErrLockTimeout error
// and leaves the state untouched; callers decide their own fallback.
package state

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/climanode/internal/device"
	"github.com/muurk/climanode/internal/logging"
)

// DefaultLockTimeout is the bounded wait applied when no option overrides it.
const DefaultLockTimeout = 100 * time.Millisecond

// Field names a string field of the configuration record.
type Field int

const (
	FieldCloudToken Field = iota
	FieldCloudServer
	FieldCloudPort
	FieldWifiSSID
	FieldWifiPass
)

func (f Field) String() string {
	switch f {
	case FieldCloudToken:
		return "cloud_token"
	case FieldCloudServer:
		return "cloud_server"
	case FieldCloudPort:
		return "cloud_port"
	case FieldWifiSSID:
		return "wifi_ssid"
	case FieldWifiPass:
		return "wifi_pass"
	default:
		return fmt.Sprintf("Field(%d)", int(f))
	}
}

// Store is the guarded state record. The zero value is not usable; use New.
type Store struct {
	// lock is a one-slot semaphore so acquisition can time out.
	lock    chan struct{}
	timeout time.Duration

	cfg      device.DeviceConfig
	reading  device.Reading
	lastGood device.Reading
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout sets the bounded wait for every accessor.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New returns a ready store seeded with cfg and the default reading.
func New(cfg device.DeviceConfig, opts ...Option) *Store {
	s := &Store{
		lock:     make(chan struct{}, 1),
		timeout:  DefaultLockTimeout,
		cfg:      cfg.Clone(),
		reading:  device.DefaultReading(),
		lastGood: device.DefaultReading(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) acquire(op string) error {
	select {
	case s.lock <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case s.lock <- struct{}{}:
		return nil
	case <-timer.C:
		return device.NewLockTimeoutError(op)
	}
}

func (s *Store) release() {
	<-s.lock
}

// Sensor returns the latest stored reading.
func (s *Store) Sensor() (device.Reading, error) {
	if err := s.acquire("read sensor"); err != nil {
		return device.Reading{}, err
	}
	defer s.release()
	return s.reading, nil
}

// SetSensor stores r. A NaN or infinite field is replaced with the last
// known good value of that field, so stored readings are always numeric.
func (s *Store) SetSensor(r device.Reading) error {
	if err := s.acquire("write sensor"); err != nil {
		return err
	}

	var invalid []string
	if !finite(r.Temperature) {
		r.Temperature = s.lastGood.Temperature
		invalid = append(invalid, "temperature")
	} else {
		s.lastGood.Temperature = r.Temperature
	}
	if !finite(r.Humidity) {
		r.Humidity = s.lastGood.Humidity
		invalid = append(invalid, "humidity")
	} else {
		s.lastGood.Humidity = r.Humidity
	}
	s.reading = r
	s.release()

	if len(invalid) > 0 {
		logging.Warn("Substituted invalid sensor fields",
			zap.Error(device.NewSensorInvalidError("non-numeric reading")),
			zap.Strings("fields", invalid),
			zap.Float64("temperature", r.Temperature),
			zap.Float64("humidity", r.Humidity),
		)
	}
	return nil
}

// ConfigField returns one string field of the configuration record.
func (s *Store) ConfigField(f Field) (string, error) {
	if err := s.acquire("read " + f.String()); err != nil {
		return "", err
	}
	defer s.release()

	p, err := s.field(f)
	if err != nil {
		return "", err
	}
	return *p, nil
}

// SetConfigField replaces one string field of the configuration record.
func (s *Store) SetConfigField(f Field, value string) error {
	if err := s.acquire("write " + f.String()); err != nil {
		return err
	}
	defer s.release()

	p, err := s.field(f)
	if err != nil {
		return err
	}
	*p = value
	return nil
}

func (s *Store) field(f Field) (*string, error) {
	switch f {
	case FieldCloudToken:
		return &s.cfg.CloudToken, nil
	case FieldCloudServer:
		return &s.cfg.CloudServer, nil
	case FieldCloudPort:
		return &s.cfg.CloudPort, nil
	case FieldWifiSSID:
		return &s.cfg.WifiSSID, nil
	case FieldWifiPass:
		return &s.cfg.WifiPass, nil
	default:
		return nil, fmt.Errorf("unknown config field %v", f)
	}
}

// Override reports whether id is under remote control. Generic GPIO outputs
// never carry an override.
func (s *Store) Override(id device.ActuatorID) (bool, error) {
	if !id.Overridable() {
		return false, nil
	}
	if err := s.acquire("read override"); err != nil {
		return false, err
	}
	defer s.release()
	return s.cfg.Override[id], nil
}

// SetOverride sets the override flag of id. It is a no-op for generic GPIO.
func (s *Store) SetOverride(id device.ActuatorID, on bool) error {
	if !id.Overridable() {
		return nil
	}
	if err := s.acquire("write override"); err != nil {
		return err
	}
	defer s.release()

	if s.cfg.Override == nil {
		s.cfg.Override = make(map[device.ActuatorID]bool)
	}
	s.cfg.Override[id] = on
	return nil
}

// WebserverRunning reports whether the UI server is listening.
func (s *Store) WebserverRunning() (bool, error) {
	if err := s.acquire("read webserver_running"); err != nil {
		return false, err
	}
	defer s.release()
	return s.cfg.WebserverRunning, nil
}

// SetWebserverRunning records the UI server liveness.
func (s *Store) SetWebserverRunning(running bool) error {
	if err := s.acquire("write webserver_running"); err != nil {
		return err
	}
	defer s.release()
	s.cfg.WebserverRunning = running
	return nil
}

// Snapshot returns a deep copy of the configuration record.
func (s *Store) Snapshot() (device.DeviceConfig, error) {
	if err := s.acquire("snapshot"); err != nil {
		return device.DeviceConfig{}, err
	}
	defer s.release()
	return s.cfg.Clone(), nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
