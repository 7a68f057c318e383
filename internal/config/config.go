package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/muurk/climanode/internal/actuator"
	"github.com/muurk/climanode/internal/bus"
	"github.com/muurk/climanode/internal/control"
	"github.com/muurk/climanode/internal/device"
	"github.com/muurk/climanode/internal/sensor"
	"github.com/muurk/climanode/internal/state"
)

// CurrentVersion is the configuration schema version.
const CurrentVersion = 1

// Sensor sources.
const (
	SourceSimulated = "simulated"
	SourceSerial    = "serial"
)

// Config is the whole node configuration file.
type Config struct {
	Version   int             `yaml:"version"`
	Node      NodeConfig      `yaml:"node"`
	Cloud     CloudConfig     `yaml:"cloud"`
	Wifi      WifiConfig      `yaml:"wifi"`
	Pins      device.PinMap   `yaml:"pins"`
	Store     StoreConfig     `yaml:"store"`
	Bus       BusConfig       `yaml:"bus"`
	Control   ControlConfig   `yaml:"control"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Sensor    SensorConfig    `yaml:"sensor"`
	UI        UIConfig        `yaml:"ui"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Log       LogConfig       `yaml:"log"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// NodeConfig identifies the node.
type NodeConfig struct {
	Name string `yaml:"name"` // mDNS instance and InfluxDB device tag
}

// CloudConfig holds the MQTT broker connection.
type CloudConfig struct {
	Server        string        `yaml:"server"`
	Port          string        `yaml:"port"`
	Token         string        `yaml:"token"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// WifiConfig holds station credentials. The node only stores them; joining
// the network is left to the host.
type WifiConfig struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
}

type StoreConfig struct {
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

type BusConfig struct {
	Capacity       int           `yaml:"capacity"`
	EnqueueTimeout time.Duration `yaml:"enqueue_timeout"`
}

// ControlConfig tunes the autonomous controllers.
type ControlConfig struct {
	Temperature     control.Thresholds `yaml:"temperature"`
	Humidity        control.Thresholds `yaml:"humidity"`
	Blinks          [3]control.Blink   `yaml:"blinks"`
	OverridePoll    time.Duration      `yaml:"override_poll"`
	PixelInterval   time.Duration      `yaml:"pixel_interval"`
	OverrideRelease bool               `yaml:"override_release"`
	ManualColor     actuator.Color     `yaml:"manual_color"`
}

type TelemetryConfig struct {
	Interval time.Duration `yaml:"interval"`
	Influx   InfluxConfig  `yaml:"influx"`
}

// InfluxConfig enables the InfluxDB sink when URL is set.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Enabled reports whether the sink is configured.
func (c InfluxConfig) Enabled() bool { return c.URL != "" }

type SensorConfig struct {
	Source         string                `yaml:"source"`
	Port           string                `yaml:"port"`
	Baud           int                   `yaml:"baud"`
	Interval       time.Duration         `yaml:"interval"`
	Classification sensor.Classification `yaml:"classification"`
}

type UIConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	Cert              string        `yaml:"cert"`
	Key               string        `yaml:"key"`
	Origins           []string      `yaml:"origins"`
	CommandWait       time.Duration `yaml:"command_wait"`
	SuperviseInterval time.Duration `yaml:"supervise_interval"`
}

// GPIOConfig selects the output driver. An empty Chip uses the simulated
// driver.
type GPIOConfig struct {
	Chip      string `yaml:"chip"`
	LED       int    `yaml:"led"`
	PixelRGB  [3]int `yaml:"pixel_rgb"`
	ActiveLow bool   `yaml:"active_low"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type DiscoveryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the reference configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Node:    NodeConfig{Name: "climanode"},
		Cloud: CloudConfig{
			Server:        "demo.thingsboard.io",
			Port:          "1883",
			RetryInterval: 5 * time.Second,
		},
		Pins:  device.DefaultPinMap(),
		Store: StoreConfig{LockTimeout: state.DefaultLockTimeout},
		Bus: BusConfig{
			Capacity:       bus.DefaultCapacity,
			EnqueueTimeout: bus.DefaultEnqueueTimeout,
		},
		Control: ControlConfig{
			Temperature:   control.DefaultTemperatureThresholds(),
			Humidity:      control.DefaultHumidityThresholds(),
			Blinks:        control.DefaultBlinks(),
			OverridePoll:  control.DefaultOverridePoll,
			PixelInterval: control.DefaultPixelInterval,
			ManualColor:   actuator.White,
		},
		Telemetry: TelemetryConfig{Interval: 10 * time.Second},
		Sensor: SensorConfig{
			Source:         SourceSimulated,
			Baud:           9600,
			Interval:       sensor.DefaultInterval,
			Classification: sensor.DefaultClassification(),
		},
		UI: UIConfig{
			Port:              80,
			CommandWait:       2 * time.Second,
			SuperviseInterval: 5 * time.Second,
		},
		GPIO: GPIOConfig{
			LED:      17,
			PixelRGB: [3]int{22, 23, 24},
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Discovery: DiscoveryConfig{Enabled: true},
	}
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Version != CurrentVersion {
		add("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}
	if c.Cloud.Port != "" {
		if p, err := strconv.Atoi(c.Cloud.Port); err != nil || p < 1 || p > 65535 {
			add("cloud.port: %q is not a valid port", c.Cloud.Port)
		}
	}
	if c.Pins.LED == c.Pins.Neo {
		add("pins: led and neo must differ (both %d)", c.Pins.LED)
	}
	if c.Store.LockTimeout <= 0 {
		add("store.lock_timeout must be positive")
	}
	if c.Bus.Capacity < 1 {
		add("bus.capacity must be at least 1")
	}
	if c.Bus.EnqueueTimeout <= 0 {
		add("bus.enqueue_timeout must be positive")
	}
	if c.Control.Temperature.Low >= c.Control.Temperature.High {
		add("control.temperature: low (%g) must be below high (%g)", c.Control.Temperature.Low, c.Control.Temperature.High)
	}
	if c.Control.Humidity.Low >= c.Control.Humidity.High {
		add("control.humidity: low (%g) must be below high (%g)", c.Control.Humidity.Low, c.Control.Humidity.High)
	}
	for i, b := range c.Control.Blinks {
		if b.On <= 0 || b.Off <= 0 {
			add("control.blinks[%d]: on and off must be positive", i)
		}
	}
	if c.Control.OverridePoll <= 0 || c.Control.PixelInterval <= 0 {
		add("control: override_poll and pixel_interval must be positive")
	}
	if c.Telemetry.Interval <= 0 {
		add("telemetry.interval must be positive")
	}
	if c.Telemetry.Influx.Enabled() && (c.Telemetry.Influx.Org == "" || c.Telemetry.Influx.Bucket == "") {
		add("telemetry.influx: org and bucket are required when url is set")
	}
	switch c.Sensor.Source {
	case SourceSimulated:
	case SourceSerial:
		if c.Sensor.Port == "" {
			add("sensor.port is required for the serial source")
		}
	default:
		add("sensor.source: %q is not one of simulated, serial", c.Sensor.Source)
	}
	if c.Sensor.Interval <= 0 {
		add("sensor.interval must be positive")
	}
	if c.UI.Port < 1 || c.UI.Port > 65535 {
		add("ui.port: %d is not a valid port", c.UI.Port)
	}
	if (c.UI.Cert == "") != (c.UI.Key == "") {
		add("ui: cert and key must be set together")
	}
	if c.UI.SuperviseInterval <= 0 {
		add("ui.supervise_interval must be positive")
	}

	return errors.Join(errs...)
}

// DeviceConfig is the initial store record.
func (c *Config) DeviceConfig() device.DeviceConfig {
	return device.DeviceConfig{
		CloudToken:  c.Cloud.Token,
		CloudServer: c.Cloud.Server,
		CloudPort:   c.Cloud.Port,
		WifiSSID:    c.Wifi.SSID,
		WifiPass:    c.Wifi.Password,
	}
}

// ApplyDeviceConfig copies connection settings back from a store snapshot.
// Empty values leave the current setting in place.
func (c *Config) ApplyDeviceConfig(d device.DeviceConfig) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Cloud.Token, d.CloudToken)
	set(&c.Cloud.Server, d.CloudServer)
	set(&c.Cloud.Port, d.CloudPort)
	set(&c.Wifi.SSID, d.WifiSSID)
	set(&c.Wifi.Password, d.WifiPass)
}
