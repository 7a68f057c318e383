package sensor

import (
	"context"
	"math"
	"testing"

	"go.bug.st/serial"

	"github.com/muurk/climanode/internal/device"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    device.Reading
		wantErr bool
	}{
		{"key value", "T=23.4;H=55.1", device.Reading{Temperature: 23.4, Humidity: 55.1}, false},
		{"spaces and case", " t = 19 ; h = 41 \r\n", device.Reading{Temperature: 19, Humidity: 41}, false},
		{"json", `{"temperature":30.5,"humidity":62}`, device.Reading{Temperature: 30.5, Humidity: 62}, false},
		{"json missing field", `{"temperature":30.5}`, device.Reading{}, true},
		{"garbage", "hello", device.Reading{}, true},
		{"bad number", "T=abc;H=1", device.Reading{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLine() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !device.IsMalformed(err) {
					t.Errorf("error %v is not a malformed message", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseLine() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseLinePartial(t *testing.T) {
	r, err := ParseLine("T=21")
	if err != nil {
		t.Fatal(err)
	}
	if r.Temperature != 21 || !math.IsNaN(r.Humidity) {
		t.Errorf("ParseLine(partial) = %+v, want humidity NaN", r)
	}
}

func TestSimulatedStaysInBounds(t *testing.T) {
	s := NewSimulated(device.DefaultReading(), 7)
	for i := 0; i < 500; i++ {
		r, err := s.Read(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if r.Temperature < 10 || r.Temperature > 40 || r.Humidity < 10 || r.Humidity > 90 {
			t.Fatalf("reading out of bounds: %+v", r)
		}
	}
}

func TestSimulatedDeterministic(t *testing.T) {
	a := NewSimulated(device.DefaultReading(), 42)
	b := NewSimulated(device.DefaultReading(), 42)
	for i := 0; i < 10; i++ {
		ra, _ := a.Read(context.Background())
		rb, _ := b.Read(context.Background())
		if ra != rb {
			t.Fatalf("step %d: %+v != %+v", i, ra, rb)
		}
	}
}

// fakePort serves canned bytes and reports a read timeout once drained.
type fakePort struct {
	serial.Port
	data   []byte
	chunk  int
	closed bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.data) == 0 {
		return 0, nil
	}
	n := p.chunk
	if n > len(p.data) || n <= 0 {
		n = len(p.data)
	}
	n = copy(b, p.data[:n])
	p.data = p.data[n:]
	return n, nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestSerialRead(t *testing.T) {
	port := &fakePort{data: []byte("\r\nT=20.5;H=45\n{\"temperature\":26,\"humidity\":58}\nT=2"), chunk: 7}
	s := newSerial(port, "/dev/ttyFAKE")
	ctx := context.Background()

	want := []device.Reading{
		{Temperature: 20.5, Humidity: 45},
		{Temperature: 26, Humidity: 58},
	}
	for i, w := range want {
		got, err := s.Read(ctx)
		if err != nil {
			t.Fatalf("Read #%d error = %v", i, err)
		}
		if got != w {
			t.Errorf("Read #%d = %+v, want %+v", i, got, w)
		}
	}

	if _, err := s.Read(ctx); err == nil {
		t.Error("expected timeout error on incomplete line")
	}
	if err := s.Close(); err != nil || !port.closed {
		t.Error("Close did not close the port")
	}
}
