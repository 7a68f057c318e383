package actuator

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/muurk/climanode/internal/device"
)

func TestBoardApply(t *testing.T) {
	sim := NewSimulated()
	b := NewBoard(sim, Color{R: 10, G: 20, B: 30})

	tests := []struct {
		name  string
		id    device.ActuatorID
		on    bool
		check func() bool
	}{
		{"led on", device.Led, true, func() bool { return sim.LED() }},
		{"led off", device.Led, false, func() bool { return !sim.LED() }},
		{"pixel on uses manual color", device.NeoPixel, true, func() bool { return sim.Pixel() == Color{R: 10, G: 20, B: 30} }},
		{"pixel off is dark", device.NeoPixel, false, func() bool { return sim.Pixel().IsOff() }},
		{"generic gpio", device.GenericGpio(17), true, func() bool { return sim.GPIO(17) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.Exclusive(tt.id, func() error { return b.Apply(tt.id, tt.on) })
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if !tt.check() {
				t.Error("driver state not updated")
			}
			if b.Level(tt.id) != tt.on {
				t.Errorf("Level() = %v, want %v", b.Level(tt.id), tt.on)
			}
		})
	}
}

func TestBoardManualColorDefaultsToWhite(t *testing.T) {
	sim := NewSimulated()
	b := NewBoard(sim, Off)
	if err := b.Apply(device.NeoPixel, true); err != nil {
		t.Fatal(err)
	}
	if sim.Pixel() != White {
		t.Errorf("Pixel() = %v, want white", sim.Pixel())
	}
}

func TestBoardDriverFailure(t *testing.T) {
	sim := NewSimulated()
	boom := errors.New("line busy")
	sim.FailOn("led", boom)
	b := NewBoard(sim, White)

	err := b.Apply(device.Led, true)
	if !device.IsActuationFailure(err) {
		t.Fatalf("Apply() error = %v, want actuation failure", err)
	}
	if !errors.Is(err, boom) {
		t.Error("driver error not wrapped")
	}
	if b.Level(device.Led) {
		t.Error("failed write must not be recorded")
	}
}

func TestExclusiveSerializesPerActuator(t *testing.T) {
	b := NewBoard(NewSimulated(), White)

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Exclusive(device.Led, func() error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxInside)
	}
}

func TestExclusiveIndependentActuators(t *testing.T) {
	b := NewBoard(NewSimulated(), White)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = b.Exclusive(device.Led, func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	done := make(chan struct{})
	go func() {
		_ = b.Exclusive(device.NeoPixel, func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pixel guard blocked by led guard")
	}
}
