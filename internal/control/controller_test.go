package control

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/muurk/climanode/internal/actuator"
	"github.com/muurk/climanode/internal/device"
	"github.com/muurk/climanode/internal/state"
)

func fastBlinks() [3]Blink {
	return [3]Blink{
		BandLow:    {On: 4 * time.Millisecond, Off: 2 * time.Millisecond},
		BandMiddle: {On: 3 * time.Millisecond, Off: 3 * time.Millisecond},
		BandHigh:   {On: 2 * time.Millisecond, Off: 2 * time.Millisecond},
	}
}

func runFor(t *testing.T, d time.Duration, run func(context.Context) error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = run(ctx)
	}()
	wg.Wait()
}

func ledWrites(sim *actuator.Simulated) int {
	n := 0
	for _, w := range sim.Writes() {
		if w.Output == "led" {
			n++
		}
	}
	return n
}

func TestLEDControllerBlinks(t *testing.T) {
	store := state.New(device.DeviceConfig{})
	sim := actuator.NewSimulated()
	board := actuator.NewBoard(sim, actuator.White)

	c := NewLEDController(LEDConfig{
		Store:        store,
		Board:        board,
		Thresholds:   DefaultTemperatureThresholds(),
		Blinks:       fastBlinks(),
		OverridePoll: 5 * time.Millisecond,
	})
	runFor(t, 60*time.Millisecond, c.Run)

	writes := sim.Writes()
	if len(writes) < 4 {
		t.Fatalf("expected several blink phases, got %d writes", len(writes))
	}
	for i, w := range writes {
		if w.On != (i%2 == 0) {
			t.Fatalf("write %d = %v, phases must alternate starting on", i, w.On)
		}
	}
}

func TestLEDControllerOverrideBlocksWrites(t *testing.T) {
	store := state.New(device.DeviceConfig{})
	_ = store.SetOverride(device.Led, true)
	sim := actuator.NewSimulated()
	board := actuator.NewBoard(sim, actuator.White)

	c := NewLEDController(LEDConfig{
		Store:        store,
		Board:        board,
		Thresholds:   DefaultTemperatureThresholds(),
		Blinks:       fastBlinks(),
		OverridePoll: 2 * time.Millisecond,
	})
	runFor(t, 40*time.Millisecond, c.Run)

	if n := ledWrites(sim); n != 0 {
		t.Errorf("LED written %d times while overridden", n)
	}
}

func TestLEDControllerNoWriteAfterOverride(t *testing.T) {
	store := state.New(device.DeviceConfig{})
	sim := actuator.NewSimulated()
	board := actuator.NewBoard(sim, actuator.White)

	c := NewLEDController(LEDConfig{
		Store:        store,
		Board:        board,
		Thresholds:   DefaultTemperatureThresholds(),
		Blinks:       fastBlinks(),
		OverridePoll: 2 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()

	time.Sleep(15 * time.Millisecond)

	// Same sequence as the dispatcher: raise the override, then write
	// under the guard.
	_ = store.SetOverride(device.Led, true)
	_ = board.Exclusive(device.Led, func() error { return board.SetLED(true) })
	remote := ledWrites(sim)

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	if n := ledWrites(sim); n != remote {
		t.Errorf("controller wrote %d times after the remote write", n-remote)
	}
	if !sim.LED() {
		t.Error("remote state was overwritten")
	}
}

func TestPixelControllerColorByHumidity(t *testing.T) {
	tests := []struct {
		humidity float64
		want     actuator.Color
	}{
		{30, actuator.Red},
		{40, actuator.Green},
		{60, actuator.Green},
		{75, actuator.Blue},
	}

	for _, tt := range tests {
		store := state.New(device.DeviceConfig{})
		_ = store.SetSensor(device.Reading{Temperature: 25, Humidity: tt.humidity})
		sim := actuator.NewSimulated()

		c := NewPixelController(PixelConfig{
			Store:      store,
			Board:      actuator.NewBoard(sim, actuator.White),
			Thresholds: DefaultHumidityThresholds(),
			Interval:   5 * time.Millisecond,
		})
		runFor(t, 20*time.Millisecond, c.Run)

		if got := sim.Pixel(); got != tt.want {
			t.Errorf("humidity %v: pixel = %v, want %v", tt.humidity, got, tt.want)
		}
	}
}

func TestPixelControllerOverride(t *testing.T) {
	store := state.New(device.DeviceConfig{})
	_ = store.SetOverride(device.NeoPixel, true)
	sim := actuator.NewSimulated()

	c := NewPixelController(PixelConfig{
		Store:        store,
		Board:        actuator.NewBoard(sim, actuator.White),
		Thresholds:   DefaultHumidityThresholds(),
		Interval:     2 * time.Millisecond,
		OverridePoll: 2 * time.Millisecond,
	})
	runFor(t, 20*time.Millisecond, c.Run)

	if len(sim.Writes()) != 0 {
		t.Errorf("pixel written while overridden: %v", sim.Writes())
	}
}
