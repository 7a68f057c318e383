package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muurk/climanode/internal/actuator"
	"github.com/muurk/climanode/internal/device"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Control.OverrideRelease {
		t.Error("override release must be off by default")
	}
	if cfg.Control.ManualColor != actuator.White {
		t.Errorf("ManualColor = %v, want white", cfg.Control.ManualColor)
	}
	if cfg.Control.Temperature.Low != 22 || cfg.Control.Temperature.High != 29 {
		t.Errorf("temperature thresholds = %+v", cfg.Control.Temperature)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad version", func(c *Config) { c.Version = 2 }, "unsupported config version"},
		{"bad cloud port", func(c *Config) { c.Cloud.Port = "mqtt" }, "cloud.port"},
		{"same pins", func(c *Config) { c.Pins.Neo = c.Pins.LED }, "pins"},
		{"zero capacity", func(c *Config) { c.Bus.Capacity = 0 }, "bus.capacity"},
		{"inverted band", func(c *Config) { c.Control.Temperature.Low = 30 }, "control.temperature"},
		{"serial without port", func(c *Config) { c.Sensor.Source = SourceSerial }, "sensor.port"},
		{"unknown source", func(c *Config) { c.Sensor.Source = "i2c" }, "sensor.source"},
		{"cert without key", func(c *Config) { c.UI.Cert = "cert.pem" }, "cert and key"},
		{"influx without bucket", func(c *Config) { c.Telemetry.Influx.URL = "http://influx:8086" }, "telemetry.influx"},
		{"zero blink", func(c *Config) { c.Control.Blinks[1].Off = 0 }, "control.blinks[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsAll(t *testing.T) {
	cfg := Default()
	cfg.Bus.Capacity = 0
	cfg.UI.Port = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "bus.capacity") || !strings.Contains(err.Error(), "ui.port") {
		t.Errorf("Validate() = %v, want both errors", err)
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node", "config.yaml")

	cfg := Default()
	cfg.Cloud.Token = "secret-token"
	cfg.Control.OverrideRelease = true
	cfg.Control.ManualColor = actuator.Color{R: 10, G: 20, B: 30}
	cfg.Store.LockTimeout = 250 * time.Millisecond
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "lock_timeout: 250ms") {
		t.Errorf("durations should be written as strings:\n%s", data)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if loaded.Cloud.Token != "secret-token" || !loaded.Control.OverrideRelease {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Control.ManualColor != (actuator.Color{R: 10, G: 20, B: 30}) {
		t.Errorf("ManualColor = %v", loaded.Control.ManualColor)
	}
	if loaded.Store.LockTimeout != 250*time.Millisecond {
		t.Errorf("LockTimeout = %v", loaded.Store.LockTimeout)
	}
}

func TestLoadFilePartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "version: 1\ncloud:\n  token: abc\nui:\n  port: 8080\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.UI.Port != 8080 || cfg.Cloud.Token != "abc" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Cloud.Server != "demo.thingsboard.io" || cfg.Bus.Capacity != 10 {
		t.Error("defaults lost for keys absent from the file")
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	missing, err := LoadFile(filepath.Join(dir, "absent.yaml"))
	if err != nil || missing.Version != CurrentVersion {
		t.Errorf("missing file: cfg=%v err=%v", missing, err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("version: [\n"), 0600)
	if _, err := LoadFile(bad); err == nil {
		t.Error("expected parse error")
	}

	old := filepath.Join(dir, "old.yaml")
	os.WriteFile(old, []byte("version: 7\n"), 0600)
	if _, err := LoadFile(old); err == nil || !strings.Contains(err.Error(), "unsupported config version") {
		t.Errorf("LoadFile() = %v, want version error", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CLIMANODE_CLOUD_TOKEN":        "env-token",
		"CLIMANODE_UI_PORT":            "9090",
		"CLIMANODE_OVERRIDE_RELEASE":   "true",
		"CLIMANODE_TELEMETRY_INTERVAL": "30s",
		"CLIMANODE_UI_ORIGINS":         "http://a.local, http://b.local,",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Cloud.Token != "env-token" || cfg.UI.Port != 9090 || !cfg.Control.OverrideRelease {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.Telemetry.Interval != 30*time.Second {
		t.Errorf("Interval = %v", cfg.Telemetry.Interval)
	}
	if len(cfg.UI.Origins) != 2 || cfg.UI.Origins[1] != "http://b.local" {
		t.Errorf("Origins = %v", cfg.UI.Origins)
	}
}

func TestApplyEnvInvalid(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "CLIMANODE_UI_PORT" {
			return "eighty", true
		}
		return "", false
	}
	err := Default().ApplyEnv(lookup)
	if err == nil || !strings.Contains(err.Error(), "CLIMANODE_UI_PORT") {
		t.Errorf("ApplyEnv() = %v, want error naming the variable", err)
	}
}

func TestLoadLayersEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("version: 1\ncloud:\n  token: file-token\n"), 0600)
	t.Setenv("CLIMANODE_CLOUD_TOKEN", "env-token")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cloud.Token != "env-token" {
		t.Errorf("Token = %q, environment should win over the file", cfg.Cloud.Token)
	}
}

func TestDeviceConfigRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Cloud.Token = "tok"
	cfg.Wifi.SSID = "greenhouse"

	d := cfg.DeviceConfig()
	if d.CloudToken != "tok" || d.WifiSSID != "greenhouse" || d.CloudServer != cfg.Cloud.Server {
		t.Errorf("DeviceConfig() = %+v", d)
	}

	cfg.ApplyDeviceConfig(device.DeviceConfig{CloudToken: "new", WifiPass: "pw"})
	if cfg.Cloud.Token != "new" || cfg.Wifi.Password != "pw" || cfg.Wifi.SSID != "greenhouse" {
		t.Errorf("ApplyDeviceConfig: %+v %+v", cfg.Cloud, cfg.Wifi)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(path) != "config.yaml" || !strings.Contains(path, "climanode") {
		t.Errorf("GetConfigPath() = %s", path)
	}
}
