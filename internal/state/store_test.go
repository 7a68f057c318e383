package state

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/muurk/climanode/internal/device"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(device.DeviceConfig{CloudToken: "tok", CloudServer: "demo.thingsboard.io", CloudPort: "1883"},
		WithLockTimeout(20*time.Millisecond))
}

func TestNewDefaults(t *testing.T) {
	s := newTestStore(t)

	r, err := s.Sensor()
	if err != nil {
		t.Fatalf("Sensor() error = %v", err)
	}
	if r != device.DefaultReading() {
		t.Errorf("Sensor() = %+v, want defaults", r)
	}

	for _, id := range []device.ActuatorID{device.Led, device.NeoPixel, device.GenericGpio(12)} {
		on, err := s.Override(id)
		if err != nil || on {
			t.Errorf("Override(%v) = %v, %v; want false, nil", id, on, err)
		}
	}
}

func TestConfigFields(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		field Field
		value string
	}{
		{FieldCloudToken, "A1B2C3"},
		{FieldCloudServer, "mqtt.example.net"},
		{FieldCloudPort, "8883"},
		{FieldWifiSSID, "greenhouse"},
		{FieldWifiPass, "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.field.String(), func(t *testing.T) {
			if err := s.SetConfigField(tt.field, tt.value); err != nil {
				t.Fatalf("SetConfigField() error = %v", err)
			}
			got, err := s.ConfigField(tt.field)
			if err != nil {
				t.Fatalf("ConfigField() error = %v", err)
			}
			if got != tt.value {
				t.Errorf("ConfigField() = %q, want %q", got, tt.value)
			}
		})
	}

	if _, err := s.ConfigField(Field(99)); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestSetOverrideGenericIsNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetOverride(device.GenericGpio(5), true); err != nil {
		t.Fatalf("SetOverride() error = %v", err)
	}
	on, _ := s.Override(device.GenericGpio(5))
	if on {
		t.Error("generic GPIO must never carry an override")
	}
	snap, _ := s.Snapshot()
	if len(snap.Override) != 0 {
		t.Errorf("snapshot overrides = %v, want empty", snap.Override)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	s := newTestStore(t)
	_ = s.SetOverride(device.Led, true)

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	snap.Override[device.Led] = false
	snap.CloudToken = "mutated"

	on, _ := s.Override(device.Led)
	if !on {
		t.Error("mutating a snapshot changed the store")
	}
	tok, _ := s.ConfigField(FieldCloudToken)
	if tok != "tok" {
		t.Errorf("token = %q, want tok", tok)
	}
}

func TestLockTimeout(t *testing.T) {
	s := newTestStore(t)

	// Hold the guard so every accessor has to wait.
	s.lock <- struct{}{}

	start := time.Now()
	_, err := s.Sensor()
	if !errors.Is(err, device.ErrLockTimeout) {
		t.Fatalf("Sensor() error = %v, want ErrLockTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("returned after %v, expected to wait for the timeout", elapsed)
	}

	if err := s.SetOverride(device.Led, true); !device.IsLockTimeout(err) {
		t.Errorf("SetOverride() error = %v, want lock timeout", err)
	}

	s.release()

	on, err := s.Override(device.Led)
	if err != nil {
		t.Fatalf("Override() after release error = %v", err)
	}
	if on {
		t.Error("timed-out SetOverride must not change state")
	}
}

func TestSetSensorSubstitutesNaN(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name string
		in   device.Reading
		want device.Reading
	}{
		{"first NaN uses defaults", device.Reading{Temperature: math.NaN(), Humidity: math.NaN()}, device.Reading{Temperature: 25, Humidity: 50}},
		{"valid reading stored", device.Reading{Temperature: 21.5, Humidity: 44}, device.Reading{Temperature: 21.5, Humidity: 44}},
		{"NaN temperature keeps last good", device.Reading{Temperature: math.NaN(), Humidity: 61}, device.Reading{Temperature: 21.5, Humidity: 61}},
		{"Inf humidity keeps last good", device.Reading{Temperature: 30, Humidity: math.Inf(1)}, device.Reading{Temperature: 30, Humidity: 61}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.SetSensor(tt.in); err != nil {
				t.Fatalf("SetSensor() error = %v", err)
			}
			got, _ := s.Sensor()
			if got != tt.want {
				t.Errorf("Sensor() = %+v, want %+v", got, tt.want)
			}
			if !got.Valid() {
				t.Error("stored reading is not numeric")
			}
		})
	}
}

func TestConcurrentWritersLastWins(t *testing.T) {
	s := New(device.DeviceConfig{}, WithLockTimeout(time.Second))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			on := i%2 == 0
			if err := s.SetOverride(device.NeoPixel, on); err != nil {
				t.Errorf("SetOverride() error = %v", err)
			}
			_ = s.SetSensor(device.Reading{Temperature: float64(i), Humidity: float64(i)})
		}(i)
	}
	wg.Wait()

	// A final sequential write must be observed exactly.
	if err := s.SetOverride(device.NeoPixel, true); err != nil {
		t.Fatal(err)
	}
	on, err := s.Override(device.NeoPixel)
	if err != nil || !on {
		t.Errorf("Override() = %v, %v; want true, nil", on, err)
	}
	r, _ := s.Sensor()
	if r.Temperature != r.Humidity {
		t.Errorf("reading fields torn: %+v", r)
	}
}

func TestWebserverRunning(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetWebserverRunning(true); err != nil {
		t.Fatal(err)
	}
	running, err := s.WebserverRunning()
	if err != nil || !running {
		t.Errorf("WebserverRunning() = %v, %v", running, err)
	}
}
