package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	appName    = "climanode"
	configFile = "config.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "CLIMANODE_"
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory for the application.
//   - Linux: $XDG_CONFIG_HOME/climanode or $HOME/.config/climanode
//   - macOS: $HOME/.config/climanode
//   - Windows: %LOCALAPPDATA%\climanode
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil

	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetConfigPath returns the full path to the default configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return GetConfigPath()
}

// Load builds the configuration from defaults, the file at path (the default
// location when empty), .env and the environment. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile reads only defaults and the file. It does not validate, so
// operator commands can repair a broken file.
func LoadFile(path string) (*Config, error) {
	path, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", cfg.Version, CurrentVersion)
	}
	return cfg, nil
}

// Save writes the configuration to path (the default location when empty).
// The write is atomic: a temporary file is renamed over the target.
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	path, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# climanode configuration
# Contains the cloud access token and Wi-Fi credentials. Keep it private.
#
# Location: ` + path + `

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

type envBinding struct {
	name  string
	apply func(c *Config, v string) error
}

func str(dst func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

func integer(dst func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func boolean(dst func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst(c) = b
		return nil
	}
}

func duration(dst func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst(c) = d
		return nil
	}
}

var envBindings = []envBinding{
	{"NODE_NAME", str(func(c *Config) *string { return &c.Node.Name })},
	{"CLOUD_SERVER", str(func(c *Config) *string { return &c.Cloud.Server })},
	{"CLOUD_PORT", str(func(c *Config) *string { return &c.Cloud.Port })},
	{"CLOUD_TOKEN", str(func(c *Config) *string { return &c.Cloud.Token })},
	{"WIFI_SSID", str(func(c *Config) *string { return &c.Wifi.SSID })},
	{"WIFI_PASSWORD", str(func(c *Config) *string { return &c.Wifi.Password })},
	{"PIN_LED", integer(func(c *Config) *int { return &c.Pins.LED })},
	{"PIN_NEO", integer(func(c *Config) *int { return &c.Pins.Neo })},
	{"OVERRIDE_RELEASE", boolean(func(c *Config) *bool { return &c.Control.OverrideRelease })},
	{"TELEMETRY_INTERVAL", duration(func(c *Config) *time.Duration { return &c.Telemetry.Interval })},
	{"INFLUX_URL", str(func(c *Config) *string { return &c.Telemetry.Influx.URL })},
	{"INFLUX_TOKEN", str(func(c *Config) *string { return &c.Telemetry.Influx.Token })},
	{"INFLUX_ORG", str(func(c *Config) *string { return &c.Telemetry.Influx.Org })},
	{"INFLUX_BUCKET", str(func(c *Config) *string { return &c.Telemetry.Influx.Bucket })},
	{"SENSOR_SOURCE", str(func(c *Config) *string { return &c.Sensor.Source })},
	{"SENSOR_PORT", str(func(c *Config) *string { return &c.Sensor.Port })},
	{"SENSOR_BAUD", integer(func(c *Config) *int { return &c.Sensor.Baud })},
	{"UI_HOST", str(func(c *Config) *string { return &c.UI.Host })},
	{"UI_PORT", integer(func(c *Config) *int { return &c.UI.Port })},
	{"UI_CERT", str(func(c *Config) *string { return &c.UI.Cert })},
	{"UI_KEY", str(func(c *Config) *string { return &c.UI.Key })},
	{"GPIO_CHIP", str(func(c *Config) *string { return &c.GPIO.Chip })},
	{"LOG_FILE", str(func(c *Config) *string { return &c.Log.File })},
	{"DISCOVERY", boolean(func(c *Config) *bool { return &c.Discovery.Enabled })},
}

// ApplyEnv overrides fields from CLIMANODE_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	for _, b := range envBindings {
		name := EnvPrefix + b.name
		v, ok := lookup(name)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if err := b.apply(c, v); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", name, v, err))
		}
	}
	if v, ok := lookup(EnvPrefix + "UI_ORIGINS"); ok {
		c.UI.Origins = splitList(v)
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
